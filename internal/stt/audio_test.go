package stt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loqalabs/loqa-scribe/internal/stt/stttest"
)

func TestOpenAudioReadsFormat(t *testing.T) {
	path := stttest.Silence(t, t.TempDir(), time.Second)

	src, err := OpenAudio(path)
	if err != nil {
		t.Fatalf("open audio: %v", err)
	}
	if src.Path != path {
		t.Fatalf("unexpected path %q", src.Path)
	}
	if src.SampleRate != 16000 || src.Channels != 1 || src.BitDepth != 16 {
		t.Fatalf("unexpected format %+v", src)
	}
	if src.Duration != time.Second {
		t.Fatalf("expected 1s duration, got %s", src.Duration)
	}
}

func TestOpenAudioRejectsNonWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("not audio at all"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := OpenAudio(path)
	if !errors.Is(err, ErrNotWav) {
		t.Fatalf("expected ErrNotWav, got %v", err)
	}
}

func TestOpenAudioDurationCountsSamplesOnly(t *testing.T) {
	path := stttest.Silence(t, t.TempDir(), 250*time.Millisecond)

	src, err := OpenAudio(path)
	if err != nil {
		t.Fatalf("open audio: %v", err)
	}
	if src.Duration != 250*time.Millisecond {
		t.Fatalf("expected 250ms duration, got %s", src.Duration)
	}
}

func TestOpenAudioMissingFile(t *testing.T) {
	if _, err := OpenAudio(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
