package eventstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/loqalabs/loqa-scribe/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	ctx := context.Background()
	cfg := config.EventStoreConfig{RetentionMode: "ephemeral"}
	es, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })
	if es.Enabled() {
		t.Fatal("ephemeral store must not persist")
	}
	if err := es.AppendRequest(ctx, "req-1", "a.wav", "en-US"); err != nil {
		t.Fatalf("append request: %v", err)
	}
	records, err := es.ListRecent(ctx, 10)
	if err != nil || len(records) != 0 {
		t.Fatalf("expected empty history, got %v, %v", records, err)
	}
}

func TestAppendAndQuery(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "events.db"), RetentionMode: "persistent"}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	ctx := context.Background()
	requestID := "request-123"
	if err := es.AppendRequest(ctx, requestID, "speech.wav", "en-US"); err != nil {
		t.Fatalf("append request: %v", err)
	}
	if err := es.AppendEvent(ctx, Event{RequestID: requestID, Type: EventInterim, Payload: []byte("hello")}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := es.CompleteRequest(ctx, requestID, "recognized", "Result: hello world"); err != nil {
		t.Fatalf("complete request: %v", err)
	}

	events, err := es.ListRequestEvents(ctx, requestID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if string(events[0].Payload) != "hello" || events[0].Type != EventInterim {
		t.Fatalf("unexpected event: %+v", events[0])
	}

	records, err := es.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 request, got %d", len(records))
	}
	if records[0].Status != "recognized" || records[0].Display != "Result: hello world" || records[0].FileName != "speech.wav" {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}

func TestPruneByDaysAndRequests(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "events.db"), RetentionMode: "persistent", RetentionDays: 1, MaxRequests: 1}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	ctx := context.Background()
	es.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendRequest(ctx, "old-request", "old.wav", "en-US"); err != nil {
		t.Fatalf("append request: %v", err)
	}
	if err := es.AppendEvent(ctx, Event{RequestID: "old-request", Type: EventCompleted}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	es.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendRequest(ctx, "new-request", "new.wav", "en-US"); err != nil {
		t.Fatalf("append request: %v", err)
	}
	if err := es.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	events, err := es.ListRequestEvents(ctx, "old-request", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected old request pruned")
	}
	records, err := es.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(records) != 1 || records[0].RequestID != "new-request" {
		t.Fatalf("expected only the new request, got %+v", records)
	}
}
