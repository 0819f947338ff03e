package audio

import (
	"github.com/foxseedlab/mensetsu/internal/audio"
	"github.com/foxseedlab/mensetsu/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (audio.TargetFactory, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewTargetFactory(c), nil
	})
}

func NewTargetFactory(c *config.Config) audio.TargetFactory {
	base := func() (audio.Target, error) {
		return NewDiscardTarget(), nil
	}
	if c.AudioOutput == config.AudioOutputSpeaker {
		base = NewSpeakerFactory(SpeakerConfig{
			SampleRate:      c.AudioSampleRate,
			MaxPendingBytes: c.AudioMaxPendingBytes,
		})
	}
	if c.AudioDumpPath == "" {
		return base
	}
	return func() (audio.Target, error) {
		t, err := base()
		if err != nil {
			return nil, err
		}
		return NewDumpTarget(t, c.AudioDumpPath), nil
	}
}
