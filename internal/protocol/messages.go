package protocol

import "time"

// Transcript is published for every interim update and for the final display.
type Transcript struct {
	RequestID string    `json:"request_id"`
	FileName  string    `json:"file_name,omitempty"`
	Language  string    `json:"language"`
	Text      string    `json:"text"`
	Partial   bool      `json:"partial"`
	Outcome   string    `json:"outcome,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RecognitionFailure is published when the recognition call itself fails.
type RecognitionFailure struct {
	RequestID string    `json:"request_id"`
	FileName  string    `json:"file_name,omitempty"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectTranscriptPartial = "stt.text.partial"
	SubjectTranscriptFinal   = "stt.text.final"
	SubjectRecognitionFailed = "stt.recognition.failed"
)
