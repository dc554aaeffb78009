package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/clientportal/portal/jobs"
)

// Enqueuer is the subset of *asynq.Client used by JobsCLI.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Inspector is the subset of *asynq.Inspector used by JobsCLI.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    Enqueuer
	inspector Inspector
	retention time.Duration
}

// NewJobsCLI initialises the CLI helpers against the Redis behind opts.
func NewJobsCLI(opts asynq.RedisClientOpt, retention time.Duration) *JobsCLI {
	return newJobsCLI(asynq.NewClient(opts), asynq.NewInspector(opts), retention)
}

func newJobsCLI(client Enqueuer, inspector Inspector, retention time.Duration) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector, retention: retention}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		err = errors.Join(err, c.inspector.Close())
	}
	if c.client != nil {
		err = errors.Join(err, c.client.Close())
	}
	return err
}

// Trigger enqueues a supported maintenance job by name with its default payload.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var (
		task *asynq.Task
		err  error
	)
	switch name {
	case jobs.TaskIdempotencyCleanup:
		task, err = jobs.NewIdempotencyCleanupTask(c.retention)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Failed    int    `json:"failed"`
}

// InspectQueue reports the metrics of the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	if err := ctx.Err(); err != nil {
		return QueueStats{}, err
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Failed = info.Failed
	}
	return stats, nil
}

// ListScheduled returns the first page of scheduled tasks.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

// JobsOptions defines the flags of the jobs command.
type JobsOptions struct {
	Action     string
	Job        string
	Limit      int
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// JobsCommand runs one of trigger, stats or scheduled.
func (c *JobsCLI) JobsCommand(ctx context.Context, opts JobsOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	emit := func(v any, human func()) int {
		if opts.JSONOutput {
			if err := json.NewEncoder(opts.Stdout).Encode(v); err != nil {
				_, _ = fmt.Fprintf(opts.Stderr, "jobs: encode json: %v\n", err)
				return 1
			}
			return 0
		}
		human()
		return 0
	}

	switch opts.Action {
	case "trigger":
		if opts.Job == "" {
			_, _ = fmt.Fprintln(opts.Stderr, "jobs trigger: --job is required")
			return 2
		}
		info, err := c.Trigger(ctx, opts.Job)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs trigger: %v\n", err)
			return 1
		}
		return emit(map[string]string{"id": info.ID, "type": info.Type, "queue": info.Queue}, func() {
			_, _ = fmt.Fprintf(opts.Stdout, "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
		})
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs stats: %v\n", err)
			return 1
		}
		return emit(stats, func() {
			_, _ = fmt.Fprintf(opts.Stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d failed=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Failed)
		})
	case "scheduled":
		tasks, err := c.ListScheduled(ctx, opts.Limit)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs scheduled: %v\n", err)
			return 1
		}
		type row struct {
			ID        string `json:"id"`
			Type      string `json:"type"`
			NextRunAt string `json:"nextRunAt"`
		}
		rows := make([]row, 0, len(tasks))
		for _, t := range tasks {
			rows = append(rows, row{ID: t.ID, Type: t.Type, NextRunAt: t.NextProcessAt.UTC().Format("2006-01-02T15:04:05Z")})
		}
		return emit(rows, func() {
			for _, r := range rows {
				_, _ = fmt.Fprintf(opts.Stdout, "%s %s %s\n", r.NextRunAt, r.Type, r.ID)
			}
		})
	default:
		_, _ = fmt.Fprintf(opts.Stderr, "jobs: unknown action %q (expected trigger, stats or scheduled)\n", opts.Action)
		return 2
	}
}
