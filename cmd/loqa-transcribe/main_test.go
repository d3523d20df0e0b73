package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/loqalabs/loqa-scribe/internal/config"
	"github.com/loqalabs/loqa-scribe/internal/control"
	"github.com/loqalabs/loqa-scribe/internal/stt/stttest"
)

func writeWav(t *testing.T) string {
	return stttest.Silence(t, t.TempDir(), time.Second)
}

func TestRunTranscribePrintsResult(t *testing.T) {
	cfg := config.Default()
	cfg.Speech.MockTranscript = "hello world"
	cfg.Speech.MockDelayMS = 0

	var stdout, stderr bytes.Buffer
	if err := runTranscribe(context.Background(), cfg, writeWav(t), &stdout, &stderr); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if got := strings.TrimSpace(stdout.String()); got != "Result: hello world" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestRunTranscribeWithoutFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := runTranscribe(context.Background(), config.Default(), "", &stdout, &stderr)
	if !errors.Is(err, control.ErrNoFile) {
		t.Fatalf("expected ErrNoFile, got %v", err)
	}
	reportError(&stderr, err)
	if got := strings.Count(strings.ToLower(stderr.String()), "no audio file present"); got != 1 {
		t.Fatalf("expected a single alert on stderr, got %q", stderr.String())
	}
}

func TestRunCheck(t *testing.T) {
	var stdout bytes.Buffer
	if err := runCheck(writeWav(t), &stdout); err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(stdout.String(), "16000 Hz") {
		t.Fatalf("unexpected output %q", stdout.String())
	}
}

func TestReportErrorPrintsOtherFailures(t *testing.T) {
	var stderr bytes.Buffer
	reportError(&stderr, errors.New("recognition failed: boom"))
	if strings.TrimSpace(stderr.String()) != "recognition failed: boom" {
		t.Fatalf("unexpected output %q", stderr.String())
	}
}
