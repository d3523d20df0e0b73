package stt

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-audio/wav"
)

// ErrNotWav is returned when a selected file is not a readable WAV file.
var ErrNotWav = errors.New("audio file is not a wav file")

// AudioSource is the handle recognizers stream samples from.
type AudioSource struct {
	Path       string
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// OpenAudio validates path as a WAV file and reads its format.
func OpenAudio(path string) (AudioSource, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return AudioSource{}, fmt.Errorf("detect audio type: %w", err)
	}
	if !mtype.Is("audio/wav") {
		return AudioSource{}, fmt.Errorf("%w: detected %s", ErrNotWav, mtype.String())
	}

	file, err := os.Open(path)
	if err != nil {
		return AudioSource{}, fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		return AudioSource{}, fmt.Errorf("%w: invalid header", ErrNotWav)
	}
	if err := dec.FwdToPCM(); err != nil {
		return AudioSource{}, fmt.Errorf("%w: %v", ErrNotWav, err)
	}
	if dec.AvgBytesPerSec == 0 {
		return AudioSource{}, fmt.Errorf("%w: zero byte rate", ErrNotWav)
	}
	// Duration covers the data chunk only; the RIFF size also counts headers.
	duration := time.Duration(dec.PCMSize) * time.Second / time.Duration(dec.AvgBytesPerSec)

	return AudioSource{
		Path:       path,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		Duration:   duration,
	}, nil
}
