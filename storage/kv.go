package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/specforge/llm"
	"github.com/c360studio/specforge/spec"
)

// Bucket names.
const (
	BucketSpecs = "SPECFORGE_SPECS"
	BucketCalls = "SPECFORGE_CALLS"
)

// KV is the subset of jetstream.KeyValue used by the stores.
type KV interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Keys(ctx context.Context, opts ...jetstream.WatchOpt) ([]string, error)
}

// Record is the value stored per specification.
type Record struct {
	Project string                 `json:"project"`
	Spec    *spec.Specification    `json:"specification"`
	Report  *spec.ValidationReport `json:"report,omitempty"`
	SavedAt time.Time              `json:"saved_at"`
}

// Connect dials NATS and returns a JetStream handle. The caller owns the
// connection.
func Connect(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url, nats.Name("specforge"))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}
	return nc, js, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Specforge %s storage", strings.ToLower(strings.TrimPrefix(name, "SPECFORGE_"))),
		History:     5,
	})
}

// KVStore keeps specification records in a key-value bucket keyed
// "<project>.<spec id>".
type KVStore struct {
	kv     KV
	bucket string
	logger *slog.Logger
}

// NewKVStore opens or creates the specification bucket.
func NewKVStore(ctx context.Context, js jetstream.JetStream, logger *slog.Logger) (*KVStore, error) {
	kv, err := getOrCreateBucket(ctx, js, BucketSpecs)
	if err != nil {
		return nil, fmt.Errorf("create specs bucket: %w", err)
	}
	return NewKVStoreFrom(kv, logger), nil
}

// NewKVStoreFrom wraps an existing bucket.
func NewKVStoreFrom(kv KV, logger *slog.Logger) *KVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &KVStore{kv: kv, bucket: BucketSpecs, logger: logger}
}

// Key returns the bucket key of a specification.
func Key(project, specID string) string {
	return keyToken(project) + "." + keyToken(specID)
}

// Write stores s and report under Key(project, s.ID) and returns
// "<bucket>/<key>".
func (s *KVStore) Write(ctx context.Context, project string, sp *spec.Specification, report *spec.ValidationReport) (string, error) {
	if project == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidProject, project)
	}
	rec := Record{Project: project, Spec: sp, Report: report, SavedAt: time.Now().UTC()}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}

	key := Key(project, sp.ID)
	if _, err := s.kv.Put(ctx, key, data); err != nil {
		return "", fmt.Errorf("store specification: %w", err)
	}

	s.logger.Info("Specification stored", "bucket", s.bucket, "key", key)
	return s.bucket + "/" + key, nil
}

// Get returns one record.
func (s *KVStore) Get(ctx context.Context, project, specID string) (*Record, error) {
	entry, err := s.kv.Get(ctx, Key(project, specID))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get specification: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

// List returns the records of a project ordered by spec id.
func (s *KVStore) List(ctx context.Context, project string) ([]*Record, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list keys: %w", err)
	}

	prefix := keyToken(project) + "."
	slices.Sort(keys)

	records := make([]*Record, 0)
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			continue // Skip entries that fail to load
		}
		var rec Record
		if err := json.Unmarshal(entry.Value(), &rec); err != nil {
			s.logger.Warn("Skipping malformed record", "key", key, "error", err)
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

// Latest returns the most recently saved record of a project.
func (s *KVStore) Latest(ctx context.Context, project string) (*Record, error) {
	records, err := s.List(ctx, project)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	SortBySavedAt(records)
	return records[len(records)-1], nil
}

// SortBySavedAt orders records oldest first.
func SortBySavedAt(records []*Record) {
	slices.SortStableFunc(records, func(a, b *Record) int {
		return a.SavedAt.Compare(b.SavedAt)
	})
}

// CallLog stores gateway call records and implements llm.CallRecorder.
type CallLog struct {
	kv KV
}

var _ llm.CallRecorder = (*CallLog)(nil)

// NewCallLog opens or creates the call bucket.
func NewCallLog(ctx context.Context, js jetstream.JetStream) (*CallLog, error) {
	kv, err := getOrCreateBucket(ctx, js, BucketCalls)
	if err != nil {
		return nil, fmt.Errorf("create calls bucket: %w", err)
	}
	return NewCallLogFrom(kv), nil
}

// NewCallLogFrom wraps an existing bucket.
func NewCallLogFrom(kv KV) *CallLog {
	return &CallLog{kv: kv}
}

// Record stores a call under its request id.
func (c *CallLog) Record(ctx context.Context, rec *llm.CallRecord) error {
	if rec.RequestID == "" {
		return errors.New("call record has no request id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal call record: %w", err)
	}
	if _, err := c.kv.Put(ctx, keyToken(rec.RequestID), data); err != nil {
		return fmt.Errorf("store call record: %w", err)
	}
	return nil
}

// List returns every stored call in chronological order.
func (c *CallLog) List(ctx context.Context) ([]*llm.CallRecord, error) {
	keys, err := c.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list call keys: %w", err)
	}

	records := make([]*llm.CallRecord, 0, len(keys))
	for _, key := range keys {
		entry, err := c.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		var rec llm.CallRecord
		if err := json.Unmarshal(entry.Value(), &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}
	llm.SortCallsByStartTime(records)
	return records, nil
}

// keyToken maps characters that are not valid in a KV key token to '_'.
func keyToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '=':
			return r
		default:
			return '_'
		}
	}, s)
}
