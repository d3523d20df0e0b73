package stt

import (
	"context"
	"strings"
	"time"
)

type mockRecognizer struct {
	transcript string
	delay      time.Duration
}

// NewMockRecognizer emits growing word prefixes of transcript as interim
// events and then recognizes the whole transcript. A blank transcript ends in
// NoMatch.
func NewMockRecognizer(transcript string, delay time.Duration) Recognizer {
	return &mockRecognizer{transcript: transcript, delay: delay}
}

func (m *mockRecognizer) RecognizeOnce(ctx context.Context, _ AudioSource, _ string, interim InterimFunc) (Outcome, error) {
	words := strings.Fields(m.transcript)
	for i := range words {
		if err := m.wait(ctx); err != nil {
			return Outcome{}, err
		}
		if interim != nil {
			interim(strings.Join(words[:i+1], " "))
		}
	}
	if err := m.wait(ctx); err != nil {
		return Outcome{}, err
	}
	if len(words) == 0 {
		return NoMatch(NoMatchInitialSilenceTimeout), nil
	}
	return Recognized(m.transcript), nil
}

func (m *mockRecognizer) wait(ctx context.Context) error {
	if m.delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.delay):
		return nil
	}
}
