package session

import (
	"fmt"

	"github.com/foxseedlab/mensetsu/internal/transport"
)

const (
	messageSessionEnded     = "The interview has ended. Start a new session to continue."
	messageEmptyInput       = "Please enter an answer before sending."
	messageNotConnected     = "Not connected to the interview server. Use /connect to try again."
	messageSendFailed       = "Your answer could not be sent. Please try again."
	messageConnectionClosed = "Connection to the interview server closed."
	messageGaveUp           = "Could not reach the interview server. Use /connect to retry manually."
	messageNoSpeech         = "No speech was recognized in the recording."
	messageBatchUnavailable = "Batch mode is not configured."
	messageInterviewEnded   = "Interview ended."
)

func retryingMessage(ev transport.StateEvent, maxRetries int) string {
	return fmt.Sprintf("Connection lost. Reconnecting (%d/%d)...", ev.Retries, maxRetries)
}

func batchFailedMessage(err error) string {
	return fmt.Sprintf("The interviewer's reply could not be read: %v", err)
}

func speechFailedMessage(err error) string {
	return fmt.Sprintf("Speech synthesis failed: %v", err)
}

func transcribeFailedMessage(err error) string {
	return fmt.Sprintf("Your recording could not be transcribed: %v", err)
}
