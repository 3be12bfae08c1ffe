// Package status exposes the public surface that needs no authentication:
// liveness for load balancers and the list of WIMS servers with their launch
// URLs, which teachers paste into their LMS.
package status

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/wims-lti/wims-lti/internal/config"
	"github.com/wims-lti/wims-lti/internal/db/controller/provider"
	"github.com/wims-lti/wims-lti/internal/web/handler"
)

// Paths of the public routes.
const (
	AlivePath   = "/checkalive"
	ServersPath = "/servers"
)

// Service is the status handler service.
type Service struct {
	cfg   *config.Config
	db    *gorm.DB
	alive func() bool
}

// Handler is the status handler.
var Handler = Service{}

// serverView is one WIMS server in the public listing.
type serverView struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	LaunchURL string `json:"launch_url"`
}

// Init initializes the status handler and registers its routes. The alive
// callback lets the web service flip liveness during graceful shutdown.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, alive func() bool) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db
	s.alive = alive

	app.Get(AlivePath, s.CheckAlive)
	app.Get(ServersPath, s.Servers)
}

// CheckAlive reports liveness. Returns 503 while shutting down so load
// balancers drain this instance.
func (s *Service) CheckAlive(c *fiber.Ctx) error {
	if s.alive != nil && !s.alive() {
		return c.Status(fiber.StatusServiceUnavailable).SendString("shutting down")
	}

	return c.SendString("ok")
}

// Servers lists the registered WIMS servers with their launch URLs.
func (s *Service) Servers(c *fiber.Ctx) error {
	providers, err := provider.GetAll(s.db)
	if err != nil {
		return err
	}

	base := strings.TrimRight(s.cfg.Webserver.URL, "/")

	views := make([]serverView, len(providers))
	for i := range providers {
		views[i] = serverView{
			ID:        providers[i].ID,
			Name:      providers[i].Name,
			LaunchURL: fmt.Sprintf("%s/lti/%d", base, providers[i].ID),
		}
	}

	return c.JSON(views)
}
