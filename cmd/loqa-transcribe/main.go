package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/loqalabs/loqa-scribe/internal/config"
	"github.com/loqalabs/loqa-scribe/internal/control"
	"github.com/loqalabs/loqa-scribe/internal/stt"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath string
		audioPath  string
		language   string
	)
	transcribeCmd := flag.NewFlagSet("transcribe", flag.ExitOnError)
	transcribeCmd.StringVar(&configPath, "config", "", "Path to configuration file")
	transcribeCmd.StringVar(&audioPath, "file", "", "Path to WAV file")
	transcribeCmd.StringVar(&language, "language", "", "Recognition language (overrides config)")

	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	checkCmd.StringVar(&audioPath, "file", "", "Path to WAV file")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "expected 'transcribe', 'check' or 'version'")
		os.Exit(2)
	}

	switch os.Args[1] {
	case "transcribe":
		transcribeCmd.Parse(os.Args[2:])
		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if language != "" {
			cfg.Speech.Language = language
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := runTranscribe(ctx, cfg, audioPath, os.Stdout, os.Stderr); err != nil {
			reportError(os.Stderr, err)
			stop()
			os.Exit(1)
		}
	case "check":
		checkCmd.Parse(os.Args[2:])
		if err := runCheck(audioPath, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
}

// stderrNotifier prints blocking alerts to the terminal.
type stderrNotifier struct {
	w io.Writer
}

func (n stderrNotifier) Alert(message string) {
	fmt.Fprintln(n.w, message)
}

// failureObserver remembers why a request failed.
type failureObserver struct {
	err error
}

func (o *failureObserver) Started(context.Context, control.Request)                         {}
func (o *failureObserver) Interim(context.Context, control.Request, string)                 {}
func (o *failureObserver) Completed(context.Context, control.Request, stt.Outcome, string) {}
func (o *failureObserver) Failed(_ context.Context, _ control.Request, err error) {
	o.err = err
}

func runTranscribe(ctx context.Context, cfg config.Config, audioPath string, stdout, stderr io.Writer) error {
	recognizer, err := stt.New(cfg.Speech)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	failures := &failureObserver{}
	ctl := control.New(ctx, control.Options{
		Recognizer: recognizer,
		Language:   cfg.Speech.Language,
		Notifier:   stderrNotifier{w: stderr},
		Observers:  []control.Observer{failures},
		Logger:     logger,
	})
	defer ctl.Close()

	if audioPath != "" {
		info, err := os.Stat(audioPath)
		if err != nil {
			return fmt.Errorf("stat audio file: %w", err)
		}
		ctl.Select(control.File{Name: filepath.Base(audioPath), Path: audioPath, Size: info.Size()})
	}

	views, stopWatch := ctl.Watch()
	defer stopWatch()
	<-views

	done, err := ctl.Activate()
	if err != nil {
		return err
	}

	last := ""
	for {
		select {
		case view := <-views:
			if !view.TriggerEnabled && view.Display != last {
				last = view.Display
				fmt.Fprintf(stderr, "… %s\n", view.Display)
			}
		case <-done:
			if failures.err != nil {
				return fmt.Errorf("recognition failed: %w", failures.err)
			}
			fmt.Fprintln(stdout, ctl.View().Display)
			return nil
		}
	}
}

// reportError prints err unless the notifier already surfaced it.
func reportError(w io.Writer, err error) {
	if errors.Is(err, control.ErrNoFile) {
		return
	}
	fmt.Fprintln(w, err)
}

func runCheck(audioPath string, stdout io.Writer) error {
	if audioPath == "" {
		return errors.New(control.NoFileAlert)
	}
	src, err := stt.OpenAudio(audioPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %d Hz, %d channel(s), %d-bit, %s\n", filepath.Base(src.Path), src.SampleRate, src.Channels, src.BitDepth, src.Duration)
	return nil
}
