package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/clientportal/portal/internal/store"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskRecordActivity persists one activity log entry.
	TaskRecordActivity = "activity:record"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	if payload.To == "" {
		return nil, fmt.Errorf("jobs: email recipient required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewRecordActivityTask wraps an activity entry.
func NewRecordActivityTask(entry store.ActivityEntry) (*asynq.Task, error) {
	if entry.UserID == "" || entry.Action == "" {
		return nil, fmt.Errorf("jobs: activity requires user and action")
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecordActivity, data), nil
}

// IdempotencyCleanupPayload configures the retention window in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs the periodic cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	hours := int(retention / time.Hour)
	if hours <= 0 {
		hours = 24
	}
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: hours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// Mailer delivers a rendered email.
type Mailer interface {
	Send(ctx context.Context, msg SendEmailPayload) error
}

// LogMailer writes emails to the log instead of a mail relay.
type LogMailer struct {
	From   string
	Logger *slog.Logger
}

// Send logs msg.
func (m LogMailer) Send(_ context.Context, msg SendEmailPayload) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("send email",
		slog.String("from", m.From),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject))
	return nil
}

// ActivityWriter persists activity entries.
type ActivityWriter interface {
	InsertActivity(ctx context.Context, entry store.ActivityEntry) error
}

// KeyCleaner prunes idempotency keys older than a retention window.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Handlers bundles the task processors registered on the worker.
type Handlers struct {
	Mailer   Mailer
	Activity ActivityWriter
	Keys     KeyCleaner
	Logger   *slog.Logger
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func (h Handlers) HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.To == "" {
		return fmt.Errorf("decode email payload: %w", asynq.SkipRetry)
	}
	if h.Mailer == nil {
		return fmt.Errorf("jobs: mailer not configured: %w", asynq.SkipRetry)
	}
	return h.Mailer.Send(ctx, payload)
}

// HandleRecordActivityTask processes TaskRecordActivity tasks.
func (h Handlers) HandleRecordActivityTask(ctx context.Context, t *asynq.Task) error {
	var entry store.ActivityEntry
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		return fmt.Errorf("decode activity payload: %w", asynq.SkipRetry)
	}
	if h.Activity == nil {
		return fmt.Errorf("jobs: activity writer not configured: %w", asynq.SkipRetry)
	}
	return h.Activity.InsertActivity(ctx, entry)
}

// HandleIdempotencyCleanupTask processes TaskIdempotencyCleanup tasks.
func (h Handlers) HandleIdempotencyCleanupTask(ctx context.Context, t *asynq.Task) error {
	payload := IdempotencyCleanupPayload{RetentionHours: 24}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode cleanup payload: %w", asynq.SkipRetry)
		}
	}
	if h.Keys == nil {
		return nil
	}
	removed, err := h.Keys.Cleanup(ctx, time.Duration(payload.RetentionHours)*time.Hour)
	if err != nil {
		return err
	}
	if h.Logger != nil {
		h.Logger.Info("idempotency keys pruned", slog.Int64("removed", removed))
	}
	return nil
}

// InvitationEmail renders the message sent to an invited user.
func InvitationEmail(to, invitedBy string) SendEmailPayload {
	body := "You have been invited to the client portal."
	if invitedBy != "" {
		body = fmt.Sprintf("%s has invited you to the client portal.", invitedBy)
	}
	body += " Your access request is pending review; you will be able to sign in once it is approved."
	return SendEmailPayload{To: to, Subject: "You're invited to the client portal", Body: body}
}
