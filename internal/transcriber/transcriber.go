package transcriber

import (
	"context"
	"errors"
)

var ErrDisabled = errors.New("transcription is disabled")

// Recording is a spoken answer captured as a WAV file.
type Recording struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Transcriber interface {
	Transcribe(ctx context.Context, sessionID string, rec Recording) (string, error)
}

type Disabled struct{}

func (Disabled) Transcribe(context.Context, string, Recording) (string, error) {
	return "", ErrDisabled
}
