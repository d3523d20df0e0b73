package stt

import (
	"context"
	"fmt"
	"time"

	"github.com/loqalabs/loqa-scribe/internal/config"
)

// ResultKind tags the terminal event of a recognition request.
type ResultKind int

const (
	KindRecognized ResultKind = iota + 1
	KindNoMatch
	KindCanceled
)

func (k ResultKind) String() string {
	switch k {
	case KindRecognized:
		return "recognized"
	case KindNoMatch:
		return "no_match"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// No-match reasons reported by the service.
const (
	NoMatchNotRecognized         = "NotRecognized"
	NoMatchInitialSilenceTimeout = "InitialSilenceTimeout"
	NoMatchInitialBabbleTimeout  = "InitialBabbleTimeout"
	NoMatchKeywordNotRecognized  = "KeywordNotRecognized"
	NoMatchEndSilenceTimeout     = "EndSilenceTimeout"
)

// Cancellation reasons reported by the service.
const (
	CancelError           = "Error"
	CancelEndOfStream     = "EndOfStream"
	CancelCancelledByUser = "CancelledByUser"
)

// Outcome is the terminal result of one recognition request.
type Outcome struct {
	Kind               ResultKind
	Text               string
	NoMatchReason      string
	CancellationReason string
	ErrorDetails       string
}

func Recognized(text string) Outcome {
	return Outcome{Kind: KindRecognized, Text: text}
}

func NoMatch(reason string) Outcome {
	return Outcome{Kind: KindNoMatch, NoMatchReason: reason}
}

func Canceled(reason, details string) Outcome {
	return Outcome{Kind: KindCanceled, CancellationReason: reason, ErrorDetails: details}
}

// InterimFunc receives the best partial transcript while recognition runs.
type InterimFunc func(text string)

// Recognizer abstracts speech-recognition backends. RecognizeOnce performs a
// single one-shot recognition: interim is called zero or more times, in
// arrival order, before it returns either an outcome or an error.
type Recognizer interface {
	RecognizeOnce(ctx context.Context, src AudioSource, language string, interim InterimFunc) (Outcome, error)
}

// New builds the recognizer selected by cfg.Provider.
func New(cfg config.SpeechConfig) (Recognizer, error) {
	switch cfg.Provider {
	case "azure":
		return NewAzureRecognizer(cfg)
	case "exec":
		return NewExecRecognizer(cfg)
	case "mock", "":
		return NewMockRecognizer(cfg.MockTranscript, time.Duration(cfg.MockDelayMS)*time.Millisecond), nil
	default:
		return nil, fmt.Errorf("unknown speech provider %q", cfg.Provider)
	}
}
