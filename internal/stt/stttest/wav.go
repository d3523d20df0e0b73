// Package stttest writes WAV fixtures for tests that exercise audio input.
package stttest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// SampleRate of the fixtures written by Silence.
const SampleRate = 16000

// Silence writes a mono 16-bit WAV file of the given length into dir and
// returns its path.
func Silence(tb testing.TB, dir string, length time.Duration) string {
	tb.Helper()
	samples := int(length * SampleRate / time.Second)
	return Write(tb, filepath.Join(dir, "speech.wav"), make([]int, samples), SampleRate)
}

// Write encodes mono 16-bit samples to path.
func Write(tb testing.TB, path string, samples []int, sampleRate int) string {
	tb.Helper()
	file, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create wav: %v", err)
	}
	defer file.Close()

	enc := wav.NewEncoder(file, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		tb.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		tb.Fatalf("close wav: %v", err)
	}
	return path
}

// Bytes returns the encoded content of a WAV fixture of the given length.
func Bytes(tb testing.TB, length time.Duration) []byte {
	tb.Helper()
	data, err := os.ReadFile(Silence(tb, tb.TempDir(), length))
	if err != nil {
		tb.Fatalf("read wav: %v", err)
	}
	return data
}
