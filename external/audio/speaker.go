//go:build speaker

package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/foxseedlab/mensetsu/internal/audio"
	"github.com/hajimehoshi/go-mp3"
)

const (
	speakerChannelCount = 2
	// ~100ms at 24kHz stereo 16-bit.
	speakerBufferBytes  = 9600
)

type SpeakerConfig struct {
	SampleRate      int
	MaxPendingBytes int
}

// NewSpeakerFactory opens the process-wide output context on first use. Only
// one context may exist per process, so later calls reuse it.
func NewSpeakerFactory(cfg SpeakerConfig) audio.TargetFactory {
	var (
		once   sync.Once
		otoCtx *oto.Context
		ready  chan struct{}
		err    error
	)
	return func() (audio.Target, error) {
		once.Do(func() {
			otoCtx, ready, err = oto.NewContext(&oto.NewContextOptions{
				SampleRate:   cfg.SampleRate,
				ChannelCount: speakerChannelCount,
				Format:       oto.FormatSignedInt16LE,
				BufferSize:   speakerBufferBytes,
			})
		})
		if err != nil {
			return nil, fmt.Errorf("init speaker: %w", err)
		}
		return newSpeakerTarget(otoCtx, ready, cfg), nil
	}
}

type speakerTarget struct {
	ctx    *oto.Context
	ready  chan struct{}
	cfg    SpeakerConfig
	stream *mp3Stream
	player *oto.Player
}

func newSpeakerTarget(ctx *oto.Context, ready chan struct{}, cfg SpeakerConfig) *speakerTarget {
	return &speakerTarget{
		ctx:    ctx,
		ready:  ready,
		cfg:    cfg,
		stream: newMP3Stream(cfg.MaxPendingBytes),
	}
}

func (t *speakerTarget) Ready() bool {
	select {
	case <-t.ready:
		return true
	default:
		return false
	}
}

func (t *speakerTarget) Append(chunk []byte) error {
	return t.stream.Write(chunk)
}

func (t *speakerTarget) Play() {
	if t.player == nil {
		t.player = t.ctx.NewPlayer(&pcmSource{stream: t.stream, sampleRate: t.cfg.SampleRate})
	}
	t.stream.SetConsuming(true)
	t.player.Play()
}

func (t *speakerTarget) Pause() {
	t.stream.SetConsuming(false)
	if t.player != nil {
		t.player.Pause()
	}
}

func (t *speakerTarget) Reset() {
	t.release()
	t.stream = newMP3Stream(t.cfg.MaxPendingBytes)
}

func (t *speakerTarget) Close() {
	t.release()
}

// release unblocks the decoder before closing the player that reads from it.
func (t *speakerTarget) release() {
	t.stream.Close()
	if t.player == nil {
		return
	}
	t.player.Pause()
	if err := t.player.Close(); err != nil {
		slog.Warn("failed to close speaker player", "error", err)
	}
	t.player = nil
}

// pcmSource decodes lazily because the decoder reads the first frame header
// when it is created, and that must happen on the playback goroutine.
type pcmSource struct {
	stream     *mp3Stream
	sampleRate int
	dec        *mp3.Decoder
	err        error
}

func (p *pcmSource) Read(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	if p.dec == nil {
		dec, err := mp3.NewDecoder(p.stream)
		if err != nil {
			p.err = err
			return 0, err
		}
		if dec.SampleRate() != p.sampleRate {
			slog.Warn("mp3 sample rate differs from speaker rate", "mp3_rate", dec.SampleRate(), "speaker_rate", p.sampleRate)
		}
		p.dec = dec
	}
	n, err := p.dec.Read(b)
	if err != nil {
		p.err = err
	}
	return n, err
}
