package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/storyglot/authz/internal/domain/audit"
)

// AuditService provides async audit logging with a buffered channel and a
// background worker, so authorization calls never block on the audit sink.
// Records that cannot be buffered are dropped and counted.
type AuditService struct {
	store         audit.Store
	recordChan    chan audit.CheckRecord
	done          chan struct{}
	wg            sync.WaitGroup
	logger        *slog.Logger
	batchSize     int
	flushInterval time.Duration

	channelSize int
	dropCount   atomic.Int64
	lastWarning atomic.Int64 // rate-limits drop warnings (unix nanos)
}

// AuditOption configures AuditService.
type AuditOption func(*AuditService)

// WithBatchSize sets the number of records to batch before writing.
func WithBatchSize(size int) AuditOption {
	return func(s *AuditService) {
		s.batchSize = size
	}
}

// WithFlushInterval sets the interval to flush pending records.
func WithFlushInterval(interval time.Duration) AuditOption {
	return func(s *AuditService) {
		s.flushInterval = interval
	}
}

// WithChannelSize sets the size of the record channel buffer.
func WithChannelSize(size int) AuditOption {
	return func(s *AuditService) {
		s.recordChan = make(chan audit.CheckRecord, size)
		s.channelSize = size
	}
}

// NewAuditService creates an AuditService over a store and starts its
// background worker. Call Close during shutdown to flush pending records.
func NewAuditService(store audit.Store, logger *slog.Logger, opts ...AuditOption) *AuditService {
	const defaultChannelSize = 1000
	s := &AuditService{
		store:         store,
		recordChan:    make(chan audit.CheckRecord, defaultChannelSize),
		done:          make(chan struct{}),
		logger:        logger,
		batchSize:     100,
		flushInterval: time.Second,
		channelSize:   defaultChannelSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.worker()

	return s
}

// Record enqueues an audit record without blocking. When the buffer is full
// the record is dropped and counted; the overall decision is unaffected.
func (s *AuditService) Record(record audit.CheckRecord) {
	record.Metadata = audit.RedactSensitiveMetadata(record.Metadata)

	select {
	case s.recordChan <- record:
	default:
		s.dropCount.Add(1)
		s.warnDrops()
	}
}

// warnDrops logs the drop count at most once per second.
func (s *AuditService) warnDrops() {
	now := time.Now().UnixNano()
	last := s.lastWarning.Load()
	if now-last < int64(time.Second) {
		return
	}
	if s.lastWarning.CompareAndSwap(last, now) {
		s.logger.Warn("audit channel full, dropping records",
			"dropped_total", s.dropCount.Load(),
			"channel_size", s.channelSize,
		)
	}
}

// Drops returns the total number of dropped records.
func (s *AuditService) Drops() int64 {
	return s.dropCount.Load()
}

// ChannelDepth returns the number of records waiting in the buffer.
func (s *AuditService) ChannelDepth() int {
	return len(s.recordChan)
}

// ChannelCapacity returns the buffer capacity.
func (s *AuditService) ChannelCapacity() int {
	return cap(s.recordChan)
}

// worker batches records and writes them to the store.
func (s *AuditService) worker() {
	defer s.wg.Done()

	batch := make([]audit.CheckRecord, 0, s.batchSize)
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.store.Append(context.Background(), batch...); err != nil {
			s.logger.Error("audit append failed", "error", err, "records", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case record := <-s.recordChan:
			batch = append(batch, record)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			// Drain whatever is still buffered, then stop.
			for {
				select {
				case record := <-s.recordChan:
					batch = append(batch, record)
					if len(batch) >= s.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops the worker, drains the channel, and flushes the store.
func (s *AuditService) Close() error {
	close(s.done)
	s.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Flush(ctx); err != nil {
		return err
	}
	return s.store.Close()
}

// Compile-time interface verification.
var _ CheckRecorder = (*AuditService)(nil)
