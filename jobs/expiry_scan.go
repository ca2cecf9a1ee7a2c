package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/licensehub/licensehub/internal/jobs"
	"github.com/licensehub/licensehub/internal/licensing"
)

// TaskExpiryScan looks for subscriptions about to expire and mails reminders.
const TaskExpiryScan = "licensing:expiry_scan"

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ExpiryScanPayload configures one scan.
type ExpiryScanPayload struct {
	WithinDays int `json:"within_days"`
}

// NewExpiryScanTask prepares the scan task.
func NewExpiryScanTask(withinDays int) (*asynq.Task, error) {
	data, err := json.Marshal(ExpiryScanPayload{WithinDays: withinDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpiryScan, data), nil
}

// CompanyLister reads the full company registry.
type CompanyLister interface {
	List(ctx context.Context) ([]licensing.Company, error)
}

// Enqueuer submits tasks. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ExpiryScanJob queues one reminder e-mail per company that has devices
// expiring inside the window.
type ExpiryScanJob struct {
	Companies  CompanyLister
	Queue      Enqueuer
	Location   *time.Location
	WithinDays int
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// Handle executes the scan.
func (j *ExpiryScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Companies == nil || j.Queue == nil {
		return errors.New("expiry scan: handler not configured")
	}
	var payload ExpiryScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode expiry scan payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if payload.WithinDays <= 0 {
		payload.WithinDays = j.WithinDays
	}
	if payload.WithinDays <= 0 {
		payload.WithinDays = 14
	}

	tracker := j.metrics().Track(TaskExpiryScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	logger := j.logger().With(slog.Int("within_days", payload.WithinDays))

	companies, err := j.Companies.List(ctx)
	if err != nil {
		logger.Error("list companies", slog.Any("error", err))
		return err
	}
	devices := licensing.ExpiringWithin(companies, j.now(), j.Location, payload.WithinDays)

	queued := 0
	for _, msg := range reminderMessages(devices) {
		task, err := NewSendEmailTask(msg)
		if err != nil {
			return err
		}
		if _, err := j.Queue.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(5)); err != nil {
			logger.Error("enqueue reminder", slog.String("to", msg.To), slog.Any("error", err))
			return err
		}
		queued++
	}
	j.metrics().AddReminders(queued)
	logger.Info("expiry scan completed",
		slog.Int("companies", len(companies)),
		slog.Int("devices", len(devices)),
		slog.Int("reminders", queued),
	)
	return nil
}

// reminderMessages groups devices by company, one message each.
func reminderMessages(devices []licensing.ExpiringDevice) []SendEmailPayload {
	byCompany := make(map[string][]licensing.ExpiringDevice)
	for _, d := range devices {
		byCompany[d.CompanyID] = append(byCompany[d.CompanyID], d)
	}
	ids := make([]string, 0, len(byCompany))
	for id := range byCompany {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]SendEmailPayload, 0, len(ids))
	for _, id := range ids {
		list := byCompany[id]
		var body strings.Builder
		fmt.Fprintf(&body, "Hello %s,\n\nThe following device licenses expire soon:\n\n", list[0].CompanyName)
		for _, d := range list {
			fmt.Fprintf(&body, "  %s  expires %s (%d days left)\n", d.Fingerprint, d.ExpiryDate, d.DaysLeft)
		}
		body.WriteString("\nPlease contact us to renew the subscription.\n")
		out = append(out, SendEmailPayload{
			To:      list[0].Email,
			Subject: fmt.Sprintf("[%s] %d device license(s) expiring soon", id, len(list)),
			Body:    body.String(),
		})
	}
	return out
}

func (j *ExpiryScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskExpiryScan))
	}
	return slog.Default().With(slog.String("job", TaskExpiryScan))
}

func (j *ExpiryScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ExpiryScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
