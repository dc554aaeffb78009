package e2e

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/clientportal/portal/internal/audit"
	jobmetrics "github.com/clientportal/portal/internal/jobs"
	"github.com/clientportal/portal/internal/store"
	"github.com/clientportal/portal/internal/store/storetest"
	"github.com/clientportal/portal/jobs"
)

// inlineQueue turns each entry into the real task and hands it straight to
// the worker handler, the way asynq would after a round trip through Redis.
type inlineQueue struct {
	handlers jobs.Handlers
	metrics  *jobmetrics.Metrics
	err      error
}

func (q *inlineQueue) EnqueueActivity(ctx context.Context, entry store.ActivityEntry) error {
	if q.err != nil {
		return q.err
	}
	task, err := jobs.NewRecordActivityTask(entry)
	if err != nil {
		return err
	}
	payload := asynq.NewTask(task.Type(), task.Payload())
	return q.metrics.Track(jobs.TaskRecordActivity).End(q.handlers.HandleRecordActivityTask(ctx, payload))
}

func TestActivityFlowsThroughQueueIntoTimeline(t *testing.T) {
	mem := storetest.New()
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	queue := &inlineQueue{handlers: jobs.Handlers{Activity: mem}, metrics: metrics}
	recorder := audit.NewRecorder(mem, nil, audit.WithQueue(queue), audit.WithMetrics(metrics))

	recorder.Record(context.Background(), store.ActivityEntry{UserID: "u-1", Action: "GET /api/projects", ResourceType: "api"})
	recorder.Record(context.Background(), store.ActivityEntry{UserID: "u-2", Action: "GET /api/audits", ResourceType: "api"})

	result, err := audit.NewService(mem).Timeline(context.Background(), audit.TimelineFilters{UserID: "u-1"})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Rows) != 1 || result.Rows[0].Action != "GET /api/projects" {
		t.Fatalf("expected the u-1 entry only, got %+v", result.Rows)
	}
	if result.Paging.Total != 1 {
		t.Fatalf("expected total 1, got %d", result.Paging.Total)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if !assertCounter(t, families, "portal_jobs_total", map[string]string{"job": jobs.TaskRecordActivity, "status": "success"}, 2) {
		t.Fatalf("expected portal_jobs_total to count both activity tasks")
	}
	if !metricExists(families, "portal_job_duration_seconds") {
		t.Fatalf("expected portal_job_duration_seconds to be recorded")
	}
}

func TestActivityFallsBackInlineWhenQueueRejects(t *testing.T) {
	mem := storetest.New()
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	queue := &inlineQueue{err: errors.New("redis down"), metrics: metrics}
	recorder := audit.NewRecorder(mem, nil, audit.WithQueue(queue), audit.WithMetrics(metrics))

	recorder.Record(context.Background(), store.ActivityEntry{UserID: "u-1", Action: "POST /api/projects"})

	if got := mem.ActivityActions(); len(got) != 1 || got[0] != "POST /api/projects" {
		t.Fatalf("expected inline write, got %v", got)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if !assertCounter(t, families, "portal_jobs_inline_fallback_total", map[string]string{"job": jobs.TaskRecordActivity}, 1) {
		t.Fatalf("expected one inline fallback")
	}
}

func assertCounter(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string, expected float64) bool {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matchLabels(metric.GetLabel(), labels) {
				if metric.GetCounter() == nil {
					return false
				}
				if metric.GetCounter().GetValue() == expected {
					return true
				}
			}
		}
	}
	return false
}

func metricExists(families []*dto.MetricFamily, name string) bool {
	for _, fam := range families {
		if fam.GetName() == name {
			return true
		}
	}
	return false
}

func matchLabels(pairs []*dto.LabelPair, expected map[string]string) bool {
	if len(expected) == 0 {
		return true
	}
	seen := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		seen[pair.GetName()] = pair.GetValue()
	}
	for k, v := range expected {
		if seen[k] != v {
			return false
		}
	}
	return true
}
