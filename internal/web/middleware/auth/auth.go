// Package auth provides the HTTP basic auth middleware protecting the admin
// API. Credentials are checked against the admin accounts in the database.
package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/rs/zerolog/log"

	"github.com/wims-lti/wims-lti/internal/auth"
)

// New creates the basic auth middleware backed by the given auth service.
func New(authService *auth.Service) fiber.Handler {
	return basicauth.New(basicauth.Config{
		Realm: "wims-lti admin",
		Authorizer: func(username, password string) bool {
			_, err := authService.Authenticate(username, password)
			if err != nil {
				log.Warn().
					Err(err).
					Str("username", username).
					Msg("admin authentication failed")
				return false
			}
			return true
		},
	})
}
