// Package frame decodes messages received on the interview channel into typed
// frames and encodes outbound turn requests.
package frame

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrNotProtocol marks a structured message that is not a turn reply.
// Callers drop such frames.
var ErrNotProtocol = errors.New("not a protocol message")

type Kind int

const (
	KindText Kind = iota + 1
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Frame is either a TextFrame or an AudioFrame.
type Frame interface {
	isFrame()
}

type TextFrame struct {
	Reply Reply
}

type AudioFrame struct {
	Data []byte
}

func (TextFrame) isFrame()  {}
func (AudioFrame) isFrame() {}

func Decode(kind Kind, data []byte) (Frame, error) {
	switch kind {
	case KindBinary:
		return AudioFrame{Data: bytes.Clone(data)}, nil
	case KindText:
		reply, err := DecodeReply(data)
		if err != nil {
			return nil, err
		}
		return TextFrame{Reply: reply}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported message kind %s", ErrNotProtocol, kind)
	}
}
