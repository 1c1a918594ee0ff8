package audit

import "context"

// Store persists audit records. Interface owned by the domain per
// hexagonal architecture. Implementations handle batching; the facade
// never blocks on audit writes.
type Store interface {
	// Append stores audit records.
	Append(ctx context.Context, records ...CheckRecord) error

	// Flush forces pending records to storage. Called during shutdown.
	Flush(ctx context.Context) error

	// Close releases resources.
	Close() error
}
