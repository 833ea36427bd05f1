package core

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"procurecore/pkg/domain"
)

type captureAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureAudit) Record(_ context.Context, entry AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *captureAudit) all() []AuditEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]AuditEntry(nil), c.entries...)
}

type captureMetrics struct {
	mu   sync.Mutex
	seen []string
}

func (c *captureMetrics) Observe(_ context.Context, operation string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := "error"
	if success {
		status = "success"
	}
	c.seen = append(c.seen, operation+":"+status)
}

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (c *captureLogger) log(level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, level+":"+msg)
}

func (c *captureLogger) Debug(msg string, _ ...any) { c.log("debug", msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.log("info", msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.log("warn", msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.log("error", msg) }

func (c *captureLogger) has(line string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.lines {
		if l == line {
			return true
		}
	}
	return false
}

func TestServiceAuditsMutationsOnly(t *testing.T) {
	ctx := context.Background()
	audit := &captureAudit{}
	metrics := &captureMetrics{}
	svc := newTestService(t, WithAuditRecorder(audit), WithMetricsRecorder(metrics))

	created, err := svc.CreateRequisition(ctx, requisition("PR-1", line(10, "1", "1")))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.GetRequisition(ctx, created.DocumentNumber); err != nil {
		t.Fatalf("get: %v", err)
	}
	_, _ = svc.ApproveRequisition(ctx, created.DocumentNumber)

	entries := audit.all()
	if len(entries) != 2 {
		t.Fatalf("expected create and approve audits only, got %+v", entries)
	}
	ok := entries[0]
	if ok.Operation != "create_requisition" || ok.Action != domain.ActionCreate || ok.Status != AuditStatusSuccess || ok.EntityID != "PR-1" {
		t.Fatalf("unexpected success entry %+v", ok)
	}
	if ok.Timestamp.IsZero() || ok.Timestamp.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", ok.Timestamp)
	}
	failed := entries[1]
	if failed.Operation != "approve_requisition" || failed.Status != AuditStatusError || failed.Code != domain.CodeInvalidStatus || failed.Error == "" {
		t.Fatalf("unexpected failure entry %+v", failed)
	}

	want := []string{"create_requisition:success", "get_requisition:success", "approve_requisition:error"}
	if strings.Join(metrics.seen, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected metrics %v", metrics.seen)
	}
}

func TestServiceLogsOutcomes(t *testing.T) {
	ctx := context.Background()
	logger := &captureLogger{}
	svc := newTestService(t, WithLogger(logger))
	approvedRequisition(t, svc, "PR-1", line(10, "1", "1"))

	if _, err := svc.GetRequisition(ctx, "PR-1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := svc.CreateOrderFromRequisition(ctx, "PR-1", "ACME", nil); err != nil {
		t.Fatalf("convert: %v", err)
	}
	_, _ = svc.GetOrder(ctx, "PO-404")

	for _, want := range []string{
		"debug:procurement read completed",
		"info:procurement operation completed",
		"info:order created from requisition",
		"warn:procurement operation failed",
	} {
		if !logger.has(want) {
			t.Fatalf("missing log line %q in %v", want, logger.lines)
		}
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	ctx := context.Background()
	recorder := NewPrometheusMetricsRecorder("")
	reg := prometheus.NewRegistry()
	if err := reg.Register(recorder); err != nil {
		t.Fatalf("register: %v", err)
	}
	svc := newTestService(t, WithMetricsRecorder(recorder))
	if _, err := svc.CreateOrder(ctx, order("PO-1", "ACME", line(10, "1", "1"))); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, _ = svc.CreateOrder(ctx, order("PO-1", "ACME", line(10, "1", "1")))
	recorder.Observe(ctx, "", true, time.Millisecond)

	if got := testutil.ToFloat64(recorder.operations.WithLabelValues("create_order", "success")); got != 1 {
		t.Fatalf("expected one success, got %v", got)
	}
	if got := testutil.ToFloat64(recorder.operations.WithLabelValues("create_order", "error")); got != 1 {
		t.Fatalf("expected one error, got %v", got)
	}
	if n := testutil.CollectAndCount(recorder, "procurecore_service_operation_duration_seconds"); n != 1 {
		t.Fatalf("expected one latency series, got %d", n)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 2 {
		t.Fatalf("expected 2 metric families, got %d", len(families))
	}
}

func TestJSONTracerWritesSpans(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	svc := newTestService(t, WithTracer(tracer))
	seedOrder(t, svc, order("PO-1", "ACME", line(10, "1", "1")))

	if _, err := svc.SubmitOrder(ctx, "PO-1"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, _ = svc.CompleteOrder(ctx, "PO-1")

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(entries))
	}
	if entries[0].Operation != "submit_order" || entries[0].Status != "success" {
		t.Fatalf("unexpected span %+v", entries[0])
	}
	if entries[1].Status != "error" || !strings.Contains(entries[1].Error, "complete_order") {
		t.Fatalf("unexpected error span %+v", entries[1])
	}
	var decoded JSONTraceEntry
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("decode span: %v", err)
	}
	if decoded.Operation != "submit_order" || decoded.EndedAt.Before(decoded.StartedAt) {
		t.Fatalf("unexpected encoded span %+v", decoded)
	}
}

func TestLogAuditRecorder(t *testing.T) {
	logger := &captureLogger{}
	rec := NewLogAuditRecorder(logger)
	rec.Record(context.Background(), AuditEntry{Operation: "cancel_order", Status: AuditStatusError, Code: domain.CodeReasonRequired})
	if !logger.has("info:audit") {
		t.Fatalf("expected audit log line, got %v", logger.lines)
	}
	NewLogAuditRecorder(nil).Record(context.Background(), AuditEntry{})
}

func TestConversionRecordsSuccessfulOutcome(t *testing.T) {
	ctx := context.Background()
	audit := &captureAudit{}
	metrics := &captureMetrics{}
	logger := &captureLogger{}
	svc := newTestService(t, WithAuditRecorder(audit), WithMetricsRecorder(metrics), WithLogger(logger))
	approvedRequisition(t, svc, "PR-1", line(10, "1", "1"))

	if _, err := svc.CreateOrderFromRequisition(ctx, "PR-1", "ACME", nil); err != nil {
		t.Fatalf("convert: %v", err)
	}
	entries := audit.all()
	if len(entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(entries))
	}
	if got := entries[0]; got.Operation != "create_order_from_requisition" || got.Status != AuditStatusSuccess || got.EntityID != "PR-1" {
		t.Fatalf("unexpected audit entry %+v", got)
	}
	metrics.mu.Lock()
	seen := append([]string(nil), metrics.seen...)
	metrics.mu.Unlock()
	if len(seen) != 1 || seen[0] != "create_order_from_requisition:success" {
		t.Fatalf("unexpected metrics %v", seen)
	}
	if !logger.has("info:order created from requisition") || !logger.has("info:procurement operation completed") {
		t.Fatalf("expected conversion and completion logs, got %v", logger.lines)
	}
}
