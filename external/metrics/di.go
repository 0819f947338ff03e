package metrics

import (
	"github.com/foxseedlab/mensetsu/internal/config"
	"github.com/foxseedlab/mensetsu/internal/telemetry"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Metrics, error) {
		return NewMetrics(), nil
	})
	do.Provide(injector, func(i do.Injector) (telemetry.Recorder, error) {
		c := do.MustInvoke[*config.Config](i)
		if c.MetricsAddr == "" {
			return telemetry.Noop{}, nil
		}
		return do.MustInvoke[*Metrics](i), nil
	})
}
