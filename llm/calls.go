package llm

import (
	"context"
	"sort"
	"time"
)

// Call statuses stored in CallRecord.Status.
const (
	CallStatusSuccess = "success"
	CallStatusError   = "error"
)

// CallRecord describes a single gateway call for auditing.
type CallRecord struct {
	// RequestID uniquely identifies this call and appears in every log line.
	RequestID string `json:"request_id"`

	// Provider is the provider that was selected.
	Provider string `json:"provider"`

	// Model is the model identifier sent to the provider.
	Model string `json:"model"`

	// URL is the resolved endpoint.
	URL string `json:"url"`

	PromptChars   int `json:"prompt_chars"`
	ResponseChars int `json:"response_chars"`

	// Status is CallStatusSuccess or CallStatusError.
	Status string `json:"status"`

	// Error contains the error message if the call failed.
	Error string `json:"error,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// CallRecorder persists call records. Recording failures never fail a call.
type CallRecorder interface {
	Record(ctx context.Context, record *CallRecord) error
}

// SortCallsByStartTime sorts call records chronologically by StartedAt.
func SortCallsByStartTime(records []*CallRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
}
