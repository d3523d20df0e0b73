package sink

import (
	"context"
	"log/slog"

	"github.com/loqalabs/loqa-scribe/internal/control"
	"github.com/loqalabs/loqa-scribe/internal/eventstore"
	"github.com/loqalabs/loqa-scribe/internal/stt"
)

// Recorder writes each request and its events into the event store.
type Recorder struct {
	store  *eventstore.Store
	logger *slog.Logger
}

func NewRecorder(store *eventstore.Store, log *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: log.With(slog.String("component", "history-recorder"))}
}

func (r *Recorder) Started(ctx context.Context, req control.Request) {
	if err := r.store.AppendRequest(ctx, req.ID, req.File.Name, req.Language); err != nil {
		r.logger.Warn("failed to record request", slog.String("request_id", req.ID), slogError(err))
	}
}

func (r *Recorder) Interim(ctx context.Context, req control.Request, text string) {
	r.append(ctx, req.ID, eventstore.EventInterim, text)
}

func (r *Recorder) Completed(ctx context.Context, req control.Request, outcome stt.Outcome, display string) {
	r.append(ctx, req.ID, eventstore.EventCompleted, display)
	if err := r.store.CompleteRequest(ctx, req.ID, outcome.Kind.String(), display); err != nil {
		r.logger.Warn("failed to complete request", slog.String("request_id", req.ID), slogError(err))
	}
}

func (r *Recorder) Failed(ctx context.Context, req control.Request, err error) {
	r.append(ctx, req.ID, eventstore.EventFailed, err.Error())
	if err := r.store.CompleteRequest(ctx, req.ID, eventstore.StatusFailed, ""); err != nil {
		r.logger.Warn("failed to complete request", slog.String("request_id", req.ID), slogError(err))
	}
}

func (r *Recorder) append(ctx context.Context, requestID, eventType, payload string) {
	evt := eventstore.Event{RequestID: requestID, Type: eventType, Payload: []byte(payload)}
	if err := r.store.AppendEvent(ctx, evt); err != nil {
		r.logger.Warn("failed to record event", slog.String("request_id", requestID), slog.String("type", eventType), slogError(err))
	}
}
