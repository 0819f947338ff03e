package session

import (
	"github.com/foxseedlab/mensetsu/internal/audio"
	"github.com/foxseedlab/mensetsu/internal/batch"
	"github.com/foxseedlab/mensetsu/internal/config"
	"github.com/foxseedlab/mensetsu/internal/eventloop"
	"github.com/foxseedlab/mensetsu/internal/telemetry"
	"github.com/foxseedlab/mensetsu/internal/transcriber"
	"github.com/foxseedlab/mensetsu/internal/transport"
	"github.com/samber/do/v2"
)

// RegisterDI wires the session around a single event loop. A Notifier,
// transport.Dialer, audio.TargetFactory, batch.Client, transcriber and
// telemetry.Recorder must already be provided.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*eventloop.Loop, error) {
		return eventloop.New(), nil
	})
	do.Provide(injector, func(i do.Injector) (*transport.Transport, error) {
		cfg := do.MustInvoke[*config.Config](i)
		loop := do.MustInvoke[*eventloop.Loop](i)
		dialer := do.MustInvoke[transport.Dialer](i)
		return transport.New(loop, dialer, transport.Config{
			URL:            cfg.WebSocketURL(),
			MaxRetries:     cfg.MaxRetries,
			RetryDelay:     cfg.RetryDelay,
			ReconnectDelay: cfg.ReconnectDelay,
			DialTimeout:    cfg.DialTimeout,
		}), nil
	})
	do.Provide(injector, func(i do.Injector) (*audio.Sink, error) {
		cfg := do.MustInvoke[*config.Config](i)
		loop := do.MustInvoke[*eventloop.Loop](i)
		newTarget := do.MustInvoke[audio.TargetFactory](i)
		metrics := do.MustInvoke[telemetry.Recorder](i)
		return audio.NewSink(loop, newTarget, audio.SinkConfig{
			RetryDelay:  cfg.AppendRetryDelay,
			MaxAttempts: cfg.AppendMaxAttempts,
			OnError: func(error) {
				metrics.SinkError()
			},
		}), nil
	})
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewManager(
			do.MustInvoke[*eventloop.Loop](i),
			NewContext(cfg),
			Options{
				AutoPlay:       cfg.AutoPlay,
				WelcomeMessage: cfg.WelcomeMessage,
				MaxRetries:     cfg.MaxRetries,
			},
			do.MustInvoke[*transport.Transport](i),
			do.MustInvoke[*audio.Sink](i),
			do.MustInvoke[batch.Client](i),
			do.MustInvoke[transcriber.Transcriber](i),
			do.MustInvoke[Notifier](i),
			do.MustInvoke[telemetry.Recorder](i),
		), nil
	})
}
