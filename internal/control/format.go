package control

import "github.com/loqalabs/loqa-scribe/internal/stt"

// FormatOutcome renders a terminal outcome into the display. Recognized and
// no-match outcomes replace the current display; a cancellation is appended
// to it, followed by the error detail when the cancellation was an error.
func FormatOutcome(current string, outcome stt.Outcome) string {
	switch outcome.Kind {
	case stt.KindRecognized:
		return "Result: " + outcome.Text
	case stt.KindNoMatch:
		return "No Match: " + outcome.NoMatchReason
	case stt.KindCanceled:
		display := current + "Canceled: " + outcome.CancellationReason
		if outcome.CancellationReason == stt.CancelError {
			display += " Error: " + outcome.ErrorDetails
		}
		return display
	default:
		return current
	}
}
