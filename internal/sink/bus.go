package sink

import (
	"context"
	"log/slog"
	"time"

	"github.com/loqalabs/loqa-scribe/internal/control"
	"github.com/loqalabs/loqa-scribe/internal/protocol"
	"github.com/loqalabs/loqa-scribe/internal/stt"
)

// Publisher is the subset of the bus client used to fan out transcripts.
type Publisher interface {
	PublishJSON(subject string, v any) error
}

// BusPublisher publishes interim text, final displays and failures on the bus.
type BusPublisher struct {
	pub    Publisher
	logger *slog.Logger
	clock  func() time.Time
}

func NewBusPublisher(pub Publisher, log *slog.Logger) *BusPublisher {
	return &BusPublisher{
		pub:    pub,
		logger: log.With(slog.String("component", "bus-publisher")),
		clock:  time.Now,
	}
}

func (b *BusPublisher) Started(context.Context, control.Request) {}

func (b *BusPublisher) Interim(_ context.Context, req control.Request, text string) {
	if text == "" {
		return
	}
	b.publish(protocol.SubjectTranscriptPartial, protocol.Transcript{
		RequestID: req.ID,
		FileName:  req.File.Name,
		Language:  req.Language,
		Text:      text,
		Partial:   true,
		Timestamp: b.clock().UTC(),
	})
}

func (b *BusPublisher) Completed(_ context.Context, req control.Request, outcome stt.Outcome, display string) {
	b.publish(protocol.SubjectTranscriptFinal, protocol.Transcript{
		RequestID: req.ID,
		FileName:  req.File.Name,
		Language:  req.Language,
		Text:      display,
		Outcome:   outcome.Kind.String(),
		Timestamp: b.clock().UTC(),
	})
}

func (b *BusPublisher) Failed(_ context.Context, req control.Request, err error) {
	b.publish(protocol.SubjectRecognitionFailed, protocol.RecognitionFailure{
		RequestID: req.ID,
		FileName:  req.File.Name,
		Error:     err.Error(),
		Timestamp: b.clock().UTC(),
	})
}

func (b *BusPublisher) publish(subject string, v any) {
	if err := b.pub.PublishJSON(subject, v); err != nil {
		b.logger.Warn("failed to publish transcript", slog.String("subject", subject), slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
