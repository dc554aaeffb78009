package audit

import (
	"context"
	"log/slog"
	"time"

	jobmetrics "github.com/clientportal/portal/internal/jobs"
	"github.com/clientportal/portal/internal/store"
)

const recordJob = "activity:record"

// Queue hands activity entries to the background worker.
type Queue interface {
	EnqueueActivity(ctx context.Context, entry store.ActivityEntry) error
}

// Writer persists activity entries synchronously.
type Writer interface {
	InsertActivity(ctx context.Context, entry store.ActivityEntry) error
}

// Recorder stores per-request activity without failing the request. Entries
// go through the queue when one is configured and are written directly
// otherwise, or when enqueueing fails.
type Recorder struct {
	queue   Queue
	writer  Writer
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// RecorderOption customises a Recorder.
type RecorderOption func(*Recorder)

// WithQueue routes entries through q.
func WithQueue(q Queue) RecorderOption {
	return func(r *Recorder) { r.queue = q }
}

// WithMetrics counts inline fallbacks.
func WithMetrics(m *jobmetrics.Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder builds a Recorder writing through w.
func NewRecorder(w Writer, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		writer:  w,
		logger:  logger,
		timeout: 2 * time.Second,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record implements auth.ActivitySink.
func (r *Recorder) Record(ctx context.Context, entry store.ActivityEntry) {
	if r == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}
	// The request may finish before persistence does.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if r.queue != nil {
		err := r.queue.EnqueueActivity(ctx, entry)
		if err == nil {
			return
		}
		r.logger.Warn("enqueue activity", slog.String("action", entry.Action), slog.Any("error", err))
		r.metrics.Fallback(recordJob)
	}
	if r.writer == nil {
		return
	}
	if err := r.writer.InsertActivity(ctx, entry); err != nil {
		r.logger.Error("record activity",
			slog.String("user_id", entry.UserID),
			slog.String("action", entry.Action),
			slog.Any("error", err))
	}
}
