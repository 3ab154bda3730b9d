package migration

import (
	"github.com/smallbiznis/salesledger/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("migrations",
	fx.Provide(New),
	fx.Invoke(func(m *Migrator, cfg config.Config) error {
		if !cfg.AutoMigrate {
			return nil
		}
		return m.Up()
	}),
)
