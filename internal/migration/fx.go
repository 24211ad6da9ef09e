package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module applies schema migrations on startup so the cache store is usable
// out of the box.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
