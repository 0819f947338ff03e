package httpapi

import (
	"github.com/foxseedlab/mensetsu/internal/batch"
	"github.com/foxseedlab/mensetsu/internal/config"
	"github.com/foxseedlab/mensetsu/internal/multipart"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (batch.Client, error) {
		c := do.MustInvoke[*config.Config](i)
		endpoints := Endpoints{
			Multipart: c.EndpointURL(c.BatchPath),
			Headers:   c.EndpointURL(c.HeaderBatchPath),
			Speech:    c.EndpointURL(c.TTSPath),
		}
		return NewClient(endpoints, c.HTTPTimeout, multipart.Options{ValidateContentTypes: c.StrictMultipart}), nil
	})
}
