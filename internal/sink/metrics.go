package sink

import (
	"context"
	"time"

	"github.com/loqalabs/loqa-scribe/internal/control"
	"github.com/loqalabs/loqa-scribe/internal/stt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/loqalabs/loqa-scribe/runtime"

// Metrics counts recognitions by outcome and records their duration.
type Metrics struct {
	recognitions metric.Int64Counter
	interims     metric.Int64Counter
	duration     metric.Float64Histogram
	inFlight     metric.Int64UpDownCounter
	clock        func() time.Time
}

func NewMetrics() (*Metrics, error) {
	return newMetrics(otel.Meter(meterName))
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	recognitions, err := meter.Int64Counter("loqa.scribe.recognitions", metric.WithDescription("Finished recognition requests by outcome"))
	if err != nil {
		return nil, err
	}
	interims, err := meter.Int64Counter("loqa.scribe.interim_events", metric.WithDescription("Interim results received"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("loqa.scribe.recognition.duration",
		metric.WithDescription("Recognition request duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	inFlight, err := meter.Int64UpDownCounter("loqa.scribe.in_flight", metric.WithDescription("Recognition requests in flight"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		recognitions: recognitions,
		interims:     interims,
		duration:     duration,
		inFlight:     inFlight,
		clock:        time.Now,
	}, nil
}

func (m *Metrics) Started(ctx context.Context, _ control.Request) {
	m.inFlight.Add(ctx, 1)
}

func (m *Metrics) Interim(ctx context.Context, _ control.Request, _ string) {
	m.interims.Add(ctx, 1)
}

func (m *Metrics) Completed(ctx context.Context, req control.Request, outcome stt.Outcome, _ string) {
	m.finish(ctx, req, outcome.Kind.String())
}

func (m *Metrics) Failed(ctx context.Context, req control.Request, _ error) {
	m.finish(ctx, req, "failed")
}

func (m *Metrics) finish(ctx context.Context, req control.Request, outcome string) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome), attribute.String("language", req.Language))
	m.inFlight.Add(ctx, -1)
	m.recognitions.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(m.clock().Sub(req.StartedAt).Milliseconds()), attrs)
}
