package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/loqa-scribe/internal/stt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	ResultsLabel     = "Results:"
	TriggerText      = "Read Async"
	NoFileAlert      = "No audio file present"
	defaultLanguage  = "en-US"
	tracerName       = "github.com/loqalabs/loqa-scribe/control"
	watcherQueueSize = 1
)

var (
	// ErrNoFile is returned when the trigger is activated without a selected file.
	ErrNoFile = errors.New("no audio file present")
	// ErrInFlight is returned when the trigger is activated while disabled.
	ErrInFlight = errors.New("recognition already in progress")
)

// File is the audio file chosen through the picker.
type File struct {
	Name string
	Path string
	Size int64
}

// View is a snapshot of everything the control renders.
type View struct {
	Label          string `json:"label"`
	TriggerText    string `json:"trigger_text"`
	TriggerEnabled bool   `json:"trigger_enabled"`
	FileName       string `json:"file_name,omitempty"`
	Display        string `json:"display"`
}

// Request describes one recognition started by the trigger.
type Request struct {
	ID        string
	File      File
	Language  string
	StartedAt time.Time
}

// Notifier surfaces blocking user notifications.
type Notifier interface {
	Alert(message string)
}

// Observer is told about every stage of a request. Calls for one request are
// made sequentially from the request goroutine.
type Observer interface {
	Started(ctx context.Context, req Request)
	Interim(ctx context.Context, req Request, text string)
	Completed(ctx context.Context, req Request, outcome stt.Outcome, display string)
	Failed(ctx context.Context, req Request, err error)
}

type Options struct {
	Recognizer stt.Recognizer
	Language   string
	Notifier   Notifier
	Observers  []Observer
	Logger     *slog.Logger
}

// Control is the transcription control: a file picker, a trigger and a
// results display wired to a Recognizer.
type Control struct {
	recognizer stt.Recognizer
	language   string
	notifier   Notifier
	observers  []Observer
	logger     *slog.Logger
	tracer     trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	file        *File
	display     string
	enabled     bool
	watchers    map[int]chan View
	nextWatcher int
}

func New(parent context.Context, opts Options) *Control {
	ctx, cancel := context.WithCancel(parent)
	language := opts.Language
	if language == "" {
		language = defaultLanguage
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Control{
		recognizer: opts.Recognizer,
		language:   language,
		notifier:   opts.Notifier,
		observers:  opts.Observers,
		logger:     logger.With(slog.String("component", "control")),
		tracer:     otel.Tracer(tracerName),
		ctx:        ctx,
		cancel:     cancel,
		enabled:    true,
		watchers:   make(map[int]chan View),
	}
}

// Close stops any in-flight request and waits for it to finish.
func (c *Control) Close() {
	c.cancel()
	c.wg.Wait()
}

// Wait blocks until no request is in flight.
func (c *Control) Wait() {
	c.wg.Wait()
}

// Select makes f the file the next activation will transcribe.
func (c *Control) Select(f File) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.file = &f
	c.broadcastLocked()
}

func (c *Control) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Control) viewLocked() View {
	v := View{
		Label:          ResultsLabel,
		TriggerText:    TriggerText,
		TriggerEnabled: c.enabled,
		Display:        c.display,
	}
	if c.file != nil {
		v.FileName = c.file.Name
	}
	return v
}

// Watch streams view snapshots. Only the latest snapshot is kept for a slow
// reader. The returned func stops the stream and closes the channel.
func (c *Control) Watch() (<-chan View, func()) {
	return c.watch(watcherQueueSize)
}

// watch registers a watcher whose channel holds up to size snapshots.
func (c *Control) watch(size int) (<-chan View, func()) {
	ch := make(chan View, size)
	c.mu.Lock()
	id := c.nextWatcher
	c.nextWatcher++
	c.watchers[id] = ch
	ch <- c.viewLocked()
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// broadcastLocked pushes the current view to every watcher. c.mu must be held.
func (c *Control) broadcastLocked() {
	view := c.viewLocked()
	for _, ch := range c.watchers {
		select {
		case ch <- view:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- view:
		default:
		}
	}
}

// Activate is the trigger. With no file selected it alerts and returns
// ErrNoFile; while a request is in flight it returns ErrInFlight. Otherwise it
// disables the trigger, starts one recognition and returns a channel closed
// once the trigger is enabled again.
func (c *Control) Activate() (<-chan struct{}, error) {
	c.mu.Lock()
	if c.file == nil {
		c.mu.Unlock()
		if c.notifier != nil {
			c.notifier.Alert(NoFileAlert)
		}
		return nil, ErrNoFile
	}
	if !c.enabled {
		c.mu.Unlock()
		return nil, ErrInFlight
	}
	c.enabled = false
	req := Request{
		ID:        uuid.NewString(),
		File:      *c.file,
		Language:  c.language,
		StartedAt: time.Now().UTC(),
	}
	c.broadcastLocked()
	c.wg.Add(1)
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer c.wg.Done()
		defer close(done)
		c.run(req)
	}()
	return done, nil
}

func (c *Control) run(req Request) {
	ctx, span := c.tracer.Start(c.ctx, "control.recognize", trace.WithAttributes(
		attribute.String("request.id", req.ID),
		attribute.String("file.name", req.File.Name),
		attribute.String("language", req.Language),
	))
	defer span.End()

	log := c.logger.With(slog.String("request_id", req.ID), slog.String("file", req.File.Name))
	log.Info("recognition started")
	for _, o := range c.observers {
		o.Started(ctx, req)
	}

	outcome, err := c.recognize(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("error occurred during recognition", slog.String("error", err.Error()))
		c.finish(nil)
		for _, o := range c.observers {
			o.Failed(ctx, req, err)
		}
		return
	}

	span.SetAttributes(attribute.String("outcome", outcome.Kind.String()))
	display := c.finish(&outcome)
	log.Info("recognition finished", slog.String("outcome", outcome.Kind.String()))
	for _, o := range c.observers {
		o.Completed(ctx, req, outcome, display)
	}
}

func (c *Control) recognize(ctx context.Context, req Request) (stt.Outcome, error) {
	if c.recognizer == nil {
		return stt.Outcome{}, errors.New("no recognizer configured")
	}
	src, err := stt.OpenAudio(req.File.Path)
	if err != nil {
		return stt.Outcome{}, fmt.Errorf("build audio source: %w", err)
	}
	return c.recognizer.RecognizeOnce(ctx, src, req.Language, func(text string) {
		c.interim(ctx, req, text)
	})
}

func (c *Control) interim(ctx context.Context, req Request, text string) {
	c.mu.Lock()
	c.display = text
	c.broadcastLocked()
	c.mu.Unlock()
	for _, o := range c.observers {
		o.Interim(ctx, req, text)
	}
}

// finish applies the terminal outcome, if any, and re-enables the trigger.
func (c *Control) finish(outcome *stt.Outcome) string {
	c.mu.Lock()
	if outcome != nil {
		c.display = FormatOutcome(c.display, *outcome)
	}
	c.enabled = true
	c.broadcastLocked()
	display := c.display
	c.mu.Unlock()
	return display
}
