package stt

import "github.com/goccy/go-json"

type serviceResponse struct {
	RecognitionStatus string `json:"RecognitionStatus"`
}

// noMatchReason derives the no-match reason from the service JSON response.
func noMatchReason(raw string) string {
	var resp serviceResponse
	if raw == "" || json.Unmarshal([]byte(raw), &resp) != nil {
		return NoMatchNotRecognized
	}
	switch resp.RecognitionStatus {
	case "InitialSilenceTimeout":
		return NoMatchInitialSilenceTimeout
	case "BabbleTimeout", "InitialBabbleTimeout":
		return NoMatchInitialBabbleTimeout
	case "EndSilenceTimeout":
		return NoMatchEndSilenceTimeout
	case "KeywordNotRecognized":
		return NoMatchKeywordNotRecognized
	default:
		return NoMatchNotRecognized
	}
}
