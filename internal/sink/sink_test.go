package sink

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/loqalabs/loqa-scribe/internal/config"
	"github.com/loqalabs/loqa-scribe/internal/control"
	"github.com/loqalabs/loqa-scribe/internal/eventstore"
	"github.com/loqalabs/loqa-scribe/internal/protocol"
	"github.com/loqalabs/loqa-scribe/internal/stt"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type published struct {
	subject string
	value   any
}

type fakePublisher struct {
	messages []published
	err      error
}

func (f *fakePublisher) PublishJSON(subject string, v any) error {
	f.messages = append(f.messages, published{subject: subject, value: v})
	return f.err
}

func testRequest() control.Request {
	return control.Request{
		ID:        "req-1",
		File:      control.File{Name: "speech.wav", Path: "/tmp/speech.wav"},
		Language:  "en-US",
		StartedAt: time.Now().Add(-250 * time.Millisecond),
	}
}

func TestBusPublisherSubjects(t *testing.T) {
	pub := &fakePublisher{}
	b := NewBusPublisher(pub, newLogger())
	ctx := context.Background()
	req := testRequest()

	b.Started(ctx, req)
	b.Interim(ctx, req, "")
	b.Interim(ctx, req, "hello")
	b.Completed(ctx, req, stt.Recognized("hello world"), "Result: hello world")
	b.Failed(ctx, req, errors.New("boom"))

	if len(pub.messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(pub.messages))
	}
	partial, ok := pub.messages[0].value.(protocol.Transcript)
	if pub.messages[0].subject != protocol.SubjectTranscriptPartial || !ok || !partial.Partial || partial.Text != "hello" {
		t.Fatalf("unexpected partial message %+v", pub.messages[0])
	}
	final, ok := pub.messages[1].value.(protocol.Transcript)
	if pub.messages[1].subject != protocol.SubjectTranscriptFinal || !ok || final.Text != "Result: hello world" || final.Outcome != "recognized" {
		t.Fatalf("unexpected final message %+v", pub.messages[1])
	}
	failure, ok := pub.messages[2].value.(protocol.RecognitionFailure)
	if pub.messages[2].subject != protocol.SubjectRecognitionFailed || !ok || failure.Error != "boom" {
		t.Fatalf("unexpected failure message %+v", pub.messages[2])
	}
}

func TestBusPublisherSwallowsErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("disconnected")}
	b := NewBusPublisher(pub, newLogger())
	b.Interim(context.Background(), testRequest(), "hello")
	if len(pub.messages) != 1 {
		t.Fatalf("expected publish attempt, got %d", len(pub.messages))
	}
}

func TestRecorderWritesHistory(t *testing.T) {
	ctx := context.Background()
	cfg := config.EventStoreConfig{Path: filepath.Join(t.TempDir(), "history.db"), RetentionMode: "persistent"}
	store, err := eventstore.Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	r := NewRecorder(store, newLogger())
	req := testRequest()
	r.Started(ctx, req)
	r.Interim(ctx, req, "hel")
	r.Interim(ctx, req, "hello")
	r.Completed(ctx, req, stt.NoMatch(stt.NoMatchInitialSilenceTimeout), "No Match: InitialSilenceTimeout")

	events, err := store.ListRequestEvents(ctx, req.ID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[2].Type != eventstore.EventCompleted {
		t.Fatalf("expected completed event last, got %q", events[2].Type)
	}

	records, err := store.ListRecent(ctx, 5)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(records) != 1 || records[0].Status != "no_match" || records[0].Display != "No Match: InitialSilenceTimeout" {
		t.Fatalf("unexpected records %+v", records)
	}
}

func TestRecorderFailure(t *testing.T) {
	ctx := context.Background()
	cfg := config.EventStoreConfig{Path: filepath.Join(t.TempDir(), "history.db"), RetentionMode: "persistent"}
	store, err := eventstore.Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	r := NewRecorder(store, newLogger())
	req := testRequest()
	r.Started(ctx, req)
	r.Failed(ctx, req, errors.New("transport closed"))

	records, err := store.ListRecent(ctx, 5)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(records) != 1 || records[0].Status != eventstore.StatusFailed {
		t.Fatalf("unexpected records %+v", records)
	}
}

func TestMetricsCountsOutcomes(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	m, err := newMetrics(provider.Meter("test"))
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	req := testRequest()
	m.Started(ctx, req)
	m.Interim(ctx, req, "hel")
	m.Completed(ctx, req, stt.Recognized("hello"), "Result: hello")
	m.Started(ctx, req)
	m.Failed(ctx, req, errors.New("boom"))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	counts := map[string]int64{}
	var inFlight int64 = -1
	for _, scope := range rm.ScopeMetrics {
		for _, metrics := range scope.Metrics {
			sum, ok := metrics.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			switch metrics.Name {
			case "loqa.scribe.recognitions":
				for _, dp := range sum.DataPoints {
					outcome, _ := dp.Attributes.Value("outcome")
					counts[outcome.AsString()] += dp.Value
				}
			case "loqa.scribe.in_flight":
				inFlight = 0
				for _, dp := range sum.DataPoints {
					inFlight += dp.Value
				}
			}
		}
	}
	if counts["recognized"] != 1 || counts["failed"] != 1 {
		t.Fatalf("unexpected outcome counts %v", counts)
	}
	if inFlight != 0 {
		t.Fatalf("expected nothing in flight, got %d", inFlight)
	}
}
