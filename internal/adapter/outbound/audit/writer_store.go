package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/storyglot/authz/internal/domain/audit"
)

// WriterStore implements audit.Store over any io.Writer, one JSON line per
// record. Used for the stdout audit output.
type WriterStore struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterStore creates a store that writes JSON Lines to w.
func NewWriterStore(w io.Writer) *WriterStore {
	return &WriterStore{w: w}
}

// Append writes records as JSON Lines.
func (s *WriterStore) Append(_ context.Context, records ...audit.CheckRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	enc := json.NewEncoder(s.w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("write check record: %w", err)
		}
	}
	return nil
}

// Flush is a no-op; records are written immediately.
func (s *WriterStore) Flush(_ context.Context) error { return nil }

// Close is a no-op; the store does not own the writer.
func (s *WriterStore) Close() error { return nil }

// Compile-time interface verification.
var _ audit.Store = (*WriterStore)(nil)
