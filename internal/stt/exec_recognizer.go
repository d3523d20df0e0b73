package stt

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/goccy/go-json"
	"github.com/loqalabs/loqa-scribe/internal/config"
	"github.com/mattn/go-shellwords"
)

// maxExecLineBytes bounds one JSON line written by the recognition command.
const maxExecLineBytes = 1 << 20

type execRecognizer struct {
	cmd       []string
	modelPath string
}

// execEvent is one JSON line written by the recognition command.
type execEvent struct {
	Partial      bool   `json:"partial"`
	Status       string `json:"status"`
	Text         string `json:"text"`
	Reason       string `json:"reason"`
	ErrorDetails string `json:"error_details"`
}

func NewExecRecognizer(cfg config.SpeechConfig) (Recognizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse speech command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("speech command is empty")
	}
	return &execRecognizer{cmd: args, modelPath: cfg.ModelPath}, nil
}

func (r *execRecognizer) RecognizeOnce(ctx context.Context, src AudioSource, language string, interim InterimFunc) (Outcome, error) {
	args := append([]string{}, r.cmd[1:]...)
	args = append(args, "--audio", src.Path)
	if r.modelPath != "" {
		args = append(args, "--model", r.modelPath)
	}
	if language != "" {
		args = append(args, "--language", language)
	}

	command := exec.CommandContext(ctx, r.cmd[0], args...)
	var stderr bytes.Buffer
	command.Stderr = &stderr
	stdout, err := command.StdoutPipe()
	if err != nil {
		return Outcome{}, fmt.Errorf("speech command stdout: %w", err)
	}
	if err := command.Start(); err != nil {
		return Outcome{}, fmt.Errorf("start speech command: %w", err)
	}

	var (
		final    *Outcome
		parseErr error
	)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxExecLineBytes)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || final != nil || parseErr != nil {
			continue
		}
		var evt execEvent
		if err := json.Unmarshal(line, &evt); err != nil {
			parseErr = fmt.Errorf("decode speech command output: %w", err)
			continue
		}
		if evt.Partial {
			if interim != nil {
				interim(evt.Text)
			}
			continue
		}
		outcome, err := evt.outcome()
		if err != nil {
			parseErr = err
			continue
		}
		final = &outcome
	}
	scanErr := scanner.Err()
	// The child blocks on a full pipe unless stdout is read to EOF.
	_, _ = io.Copy(io.Discard, stdout)

	if err := command.Wait(); err != nil {
		return Outcome{}, fmt.Errorf("speech command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if scanErr != nil {
		return Outcome{}, fmt.Errorf("read speech command output: %w", scanErr)
	}
	if parseErr != nil {
		return Outcome{}, parseErr
	}
	if final == nil {
		return Outcome{}, fmt.Errorf("speech command produced no result")
	}
	return *final, nil
}

func (e execEvent) outcome() (Outcome, error) {
	switch e.Status {
	case "recognized":
		return Recognized(e.Text), nil
	case "no_match":
		reason := e.Reason
		if reason == "" {
			reason = NoMatchNotRecognized
		}
		return NoMatch(reason), nil
	case "canceled":
		reason := e.Reason
		if reason == "" {
			reason = CancelError
		}
		return Canceled(reason, e.ErrorDetails), nil
	default:
		return Outcome{}, fmt.Errorf("unknown speech command status %q", e.Status)
	}
}
