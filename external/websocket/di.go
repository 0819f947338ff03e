package websocket

import (
	"github.com/foxseedlab/mensetsu/internal/config"
	"github.com/foxseedlab/mensetsu/internal/transport"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transport.Dialer, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewGorillaDialer(Options{HandshakeTimeout: c.DialTimeout}), nil
	})
}
