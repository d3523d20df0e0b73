//go:build azurespeech

package stt

import (
	"context"
	"fmt"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
	"github.com/loqalabs/loqa-scribe/internal/config"
)

type azureRecognizer struct {
	subscriptionKey string
	region          string
}

// NewAzureRecognizer returns a recognizer backed by the Azure Speech service.
func NewAzureRecognizer(cfg config.SpeechConfig) (Recognizer, error) {
	if cfg.SubscriptionKey == "" || cfg.Region == "" {
		return nil, fmt.Errorf("azure provider requires subscription_key and region")
	}
	return &azureRecognizer{subscriptionKey: cfg.SubscriptionKey, region: cfg.Region}, nil
}

func (r *azureRecognizer) RecognizeOnce(ctx context.Context, src AudioSource, language string, interim InterimFunc) (Outcome, error) {
	audioConfig, err := audio.NewAudioConfigFromWavFileInput(src.Path)
	if err != nil {
		return Outcome{}, fmt.Errorf("create audio config: %w", err)
	}
	defer audioConfig.Close()

	speechConfig, err := speech.NewSpeechConfigFromSubscription(r.subscriptionKey, r.region)
	if err != nil {
		return Outcome{}, fmt.Errorf("create speech config: %w", err)
	}
	defer speechConfig.Close()

	if err := speechConfig.SetSpeechRecognitionLanguage(language); err != nil {
		return Outcome{}, fmt.Errorf("set recognition language: %w", err)
	}

	recognizer, err := speech.NewSpeechRecognizerFromConfig(speechConfig, audioConfig)
	if err != nil {
		return Outcome{}, fmt.Errorf("create speech recognizer: %w", err)
	}
	defer recognizer.Close()

	if interim != nil {
		recognizer.Recognizing(func(event speech.SpeechRecognitionEventArgs) {
			defer event.Close()
			interim(event.Result.Text)
		})
	}

	task := recognizer.RecognizeOnceAsync()
	var outcome speech.SpeechRecognitionOutcome
	select {
	case outcome = <-task:
	case <-ctx.Done():
		go func() {
			late := <-task
			late.Close()
		}()
		return Outcome{}, fmt.Errorf("recognition aborted: %w", ctx.Err())
	}
	defer outcome.Close()

	if outcome.Error != nil {
		return Outcome{}, fmt.Errorf("recognition failed: %w", outcome.Error)
	}
	return azureOutcome(outcome.Result)
}

func azureOutcome(result *speech.SpeechRecognitionResult) (Outcome, error) {
	switch result.Reason {
	case common.RecognizedSpeech:
		return Recognized(result.Text), nil
	case common.NoMatch:
		raw := result.Properties.GetProperty(common.SpeechServiceResponseJSONResult, "")
		return NoMatch(noMatchReason(raw)), nil
	case common.Canceled:
		details, err := speech.NewCancellationDetailsFromSpeechRecognitionResult(result)
		if err != nil {
			return Outcome{}, fmt.Errorf("read cancellation details: %w", err)
		}
		reason := cancellationReason(details.Reason)
		if reason == CancelError {
			return Canceled(reason, details.ErrorDetails), nil
		}
		return Canceled(reason, ""), nil
	default:
		return Outcome{}, fmt.Errorf("unexpected result reason %s", result.Reason.String())
	}
}

func cancellationReason(reason common.CancellationReason) string {
	switch reason {
	case common.Error:
		return CancelError
	case common.EndOfStream:
		return CancelEndOfStream
	case common.CancelledByUser:
		return CancelCancelledByUser
	default:
		return fmt.Sprintf("Unknown(%d)", int(reason))
	}
}
