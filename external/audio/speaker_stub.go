//go:build !speaker

package audio

import (
	"log/slog"

	"github.com/foxseedlab/mensetsu/internal/audio"
)

type SpeakerConfig struct {
	SampleRate      int
	MaxPendingBytes int
}

func NewSpeakerFactory(_ SpeakerConfig) audio.TargetFactory {
	return func() (audio.Target, error) {
		slog.Warn("built without speaker support; audio will be discarded (rebuild with -tags speaker)")
		return NewDiscardTarget(), nil
	}
}
