//go:build !azurespeech

package stt

import (
	"fmt"

	"github.com/loqalabs/loqa-scribe/internal/config"
)

// NewAzureRecognizer reports that the binary was built without the native
// Speech SDK. Rebuild with -tags azurespeech to enable the azure provider.
func NewAzureRecognizer(cfg config.SpeechConfig) (Recognizer, error) {
	if cfg.SubscriptionKey == "" || cfg.Region == "" {
		return nil, fmt.Errorf("azure provider requires subscription_key and region")
	}
	return nil, fmt.Errorf("azure provider unavailable: built without the azurespeech tag")
}
