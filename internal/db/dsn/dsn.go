// Package dsn provides Data Source Name construction utilities for database connections.
package dsn

import (
	"fmt"

	"github.com/wims-lti/wims-lti/internal/config"
)

// Create builds the Data Source Name from the configuration, depending on
// the configured gorm engine.
func Create(cfg *config.Config) string {
	switch cfg.DB.GormEngine {
	case "postgres":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d %s",
			cfg.DB.Host,
			cfg.DB.User,
			cfg.DB.Password,
			cfg.DB.Name,
			cfg.DB.Port,
			cfg.DB.Extras,
		)
	case "sqlite":
		return cfg.DB.Name
	default: // mysql
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			cfg.DB.User,
			cfg.DB.Password,
			cfg.DB.Host,
			cfg.DB.Port,
			cfg.DB.Name,
			cfg.DB.Extras,
		)
	}
}
