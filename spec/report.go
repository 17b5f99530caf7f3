package spec

import (
	"fmt"
	"slices"
	"strings"
)

// Severity ranks a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Label returns the capitalized form used in model prompts ("Error", "Warning", "Info").
func (s Severity) Label() string {
	switch s {
	case SeverityError:
		return "Error"
	case SeverityWarning:
		return "Warning"
	default:
		return "Info"
	}
}

// Issue is a single finding in a validation report.
type Issue struct {
	Severity        Severity `json:"severity"`
	Message         string   `json:"message"`
	RelatedProperty *string  `json:"related_property,omitempty"`
	// Line is 1-based when present.
	Line         *int    `json:"line,omitempty"`
	SuggestedFix *string `json:"suggested_fix,omitempty"`
}

// Fix returns the suggested fix or an empty string.
func (i Issue) Fix() string {
	if i.SuggestedFix == nil {
		return ""
	}
	return *i.SuggestedFix
}

// Location renders the line reference for prompts.
func (i Issue) Location() string {
	if i.Line == nil {
		return "Unknown location"
	}
	return fmt.Sprintf("Line %d", *i.Line)
}

// ValidationReport is the outcome of reviewing a specification.
//
// Valid comes from the reviewer's verdict sentence and is not derived from
// Issues; a valid report may still list Error issues.
type ValidationReport struct {
	Valid  bool    `json:"is_valid"`
	Issues []Issue `json:"issues"`
	// ToolValidated is always false: no external checker is run.
	ToolValidated bool    `json:"tool_validated"`
	ToolOutput    *string `json:"tool_output,omitempty"`
}

// Clone returns a copy whose issue slice can be appended to independently.
func (r *ValidationReport) Clone() *ValidationReport {
	if r == nil {
		return nil
	}
	out := *r
	out.Issues = slices.Clone(r.Issues)
	return &out
}

// HasErrors reports whether any issue has Error severity.
func (r *ValidationReport) HasErrors() bool {
	return slices.ContainsFunc(r.Issues, func(i Issue) bool {
		return i.Severity == SeverityError
	})
}

// Count returns the number of issues with the given severity.
func (r *ValidationReport) Count(sev Severity) int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == sev {
			n++
		}
	}
	return n
}

// AutoFixMarker appears in the message of issues appended by the repair loop.
const AutoFixMarker = "automatically fixed"

// AutoFixAttemptedMarker appears in the message of the exhaustion warning.
const AutoFixAttemptedMarker = "Automatic fixing was attempted"

// BestEffortFix returns the code carried by the repair loop's trailing
// issue, if any.
func (r *ValidationReport) BestEffortFix() (string, bool) {
	for idx := len(r.Issues) - 1; idx >= 0; idx-- {
		issue := r.Issues[idx]
		if !isRepairNote(issue.Message) {
			continue
		}
		if fix := issue.Fix(); fix != "" {
			return fix, true
		}
	}
	return "", false
}

// VisibleIssues drops repair notes that only announce an automatic fix.
func (r *ValidationReport) VisibleIssues() []Issue {
	out := make([]Issue, 0, len(r.Issues))
	for _, i := range r.Issues {
		if strings.Contains(i.Message, AutoFixMarker) {
			continue
		}
		out = append(out, i)
	}
	return out
}

func isRepairNote(msg string) bool {
	return strings.Contains(msg, AutoFixMarker) || strings.Contains(msg, AutoFixAttemptedMarker)
}

// Depth selects a review strategy.
type Depth int

const (
	// DepthBasic reviews syntax and references.
	DepthBasic Depth = iota
	// DepthTypeCheck reviews types and internal consistency.
	DepthTypeCheck
	// DepthFormalVerification reviews provability.
	DepthFormalVerification
)

// String returns the canonical name of d.
func (d Depth) String() string {
	switch d {
	case DepthBasic:
		return "basic"
	case DepthTypeCheck:
		return "typecheck"
	case DepthFormalVerification:
		return "formal"
	default:
		return fmt.Sprintf("depth(%d)", int(d))
	}
}

// ParseDepth parses a depth name.
func ParseDepth(s string) (Depth, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basic", "syntax":
		return DepthBasic, nil
	case "typecheck", "type-check", "type", "types":
		return DepthTypeCheck, nil
	case "formal", "formal-verification", "formalverification", "verify":
		return DepthFormalVerification, nil
	default:
		return DepthBasic, fmt.Errorf("unknown validation depth %q", s)
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
