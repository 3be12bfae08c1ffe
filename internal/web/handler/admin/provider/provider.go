// Package provider exposes the admin API managing WIMS server records and
// their consumer allow-lists.
package provider

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/wims-lti/wims-lti/internal/config"
	"github.com/wims-lti/wims-lti/internal/db/controller/consumer"
	"github.com/wims-lti/wims-lti/internal/db/controller/provider"
	"github.com/wims-lti/wims-lti/internal/db/models"
	"github.com/wims-lti/wims-lti/internal/web/handler"
	"github.com/wims-lti/wims-lti/internal/wims"
)

// Path is the base path of the provider admin routes.
const Path = "/admin/providers"

// Service is the provider admin handler service.
type Service struct {
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate
}

// Handler is the provider admin handler.
var Handler = Service{}

// createRequest is the JSON body of a provider creation.
type createRequest struct {
	Name           string `json:"name" validate:"required,max=2048"`
	URL            string `json:"url" validate:"required,url,max=2048"`
	Ident          string `json:"ident" validate:"required,max=2048"`
	Passwd         string `json:"passwd" validate:"required,max=2048"`
	RClass         string `json:"rclass" validate:"required,max=2048"`
	ClassLimit     uint   `json:"class_limit"`
	ExpirationDays uint   `json:"expiration_days"`
}

// view is a provider as rendered by the API. The adm/raw credentials never
// leave the database.
type view struct {
	ID             uint64 `json:"id"`
	Name           string `json:"name"`
	URL            string `json:"url"`
	ClassLimit     uint   `json:"class_limit"`
	ExpirationDays uint   `json:"expiration_days"`
}

func toView(p *models.Provider) view {
	return view{
		ID:             p.ID,
		Name:           p.Name,
		URL:            p.URL,
		ClassLimit:     p.ClassLimit,
		ExpirationDays: p.ExpirationDays,
	}
}

// Init initializes the provider admin handler and registers its routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db
	s.validator = validator.New()

	app.Get(Path, s.List)
	app.Post(Path, s.Create)
	app.Delete(Path+"/:id", s.Delete)
	app.Post(Path+"/:id/test", s.Test)
	app.Post(Path+"/:id/consumers/:cid", s.Allow)
}

// List returns every registered WIMS server.
func (s *Service) List(c *fiber.Ctx) error {
	providers, err := provider.GetAll(s.db)
	if err != nil {
		return err
	}

	views := make([]view, len(providers))
	for i := range providers {
		views[i] = toView(&providers[i])
	}

	return c.JSON(views)
}

// Create registers a new WIMS server.
func (s *Service) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	if err := s.validator.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	record := models.Provider{
		Name:           req.Name,
		URL:            req.URL,
		Ident:          req.Ident,
		Passwd:         req.Passwd,
		RClass:         req.RClass,
		ClassLimit:     req.ClassLimit,
		ExpirationDays: req.ExpirationDays,
	}
	if err := provider.Create(s.db, &record); err != nil {
		switch {
		case errors.Is(err, provider.ErrProviderAlreadyExists):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case errors.Is(err, provider.ErrClassLimitOutOfRange):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return err
	}

	log.Info().Str("url", record.URL).Msg("provider created")

	return c.Status(fiber.StatusCreated).JSON(toView(&record))
}

// Delete removes a WIMS server.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid provider id")
	}

	if err := provider.Delete(s.db, id); err != nil {
		if errors.Is(err, provider.ErrProviderNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Test checks the adm/raw credentials of a WIMS server.
func (s *Service) Test(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid provider id")
	}

	p, err := provider.GetByID(s.db, id)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}

	client := wims.New(p.URL, p.Ident, p.Passwd, p.RClass, s.cfg.Sync.RemoteTimeout())
	if err := client.CheckIdent(c.Context()); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

// Allow adds a consumer to the provider's allow-list.
func (s *Service) Allow(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid provider id")
	}
	cid, err := strconv.ParseUint(c.Params("cid"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid consumer id")
	}

	p, err := provider.GetByID(s.db, id)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}

	cons, err := consumer.GetByID(s.db, cid)
	if err != nil {
		if errors.Is(err, consumer.ErrConsumerNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}

	if err := provider.AllowConsumer(s.db, p, cons); err != nil {
		return err
	}

	log.Info().
		Str("url", p.URL).
		Str("consumer_key", cons.Key).
		Msg("consumer allowed on provider")

	return c.SendStatus(fiber.StatusNoContent)
}
