package daemon

import (
	"gorm.io/gorm"

	"github.com/rs/zerolog/log"

	"github.com/wims-lti/wims-lti/internal/config"
	"github.com/wims-lti/wims-lti/internal/db/models"
)

func seed(_ *config.Config, db *gorm.DB) {
	// Seed a default admin account if the table is empty

	var count int64
	db.Model(&models.AdminUser{}).Count(&count)
	if count == 0 {
		db.Create(
			&models.AdminUser{
				Username: "admin",
				Password: models.HashPassword("changeme"),
				Active:   true,
			},
		)

		log.Warn().Msg("created default admin account, change its password")
	}
}
