// Package consumer exposes the admin API managing LMS consumer records.
package consumer

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/wims-lti/wims-lti/internal/config"
	"github.com/wims-lti/wims-lti/internal/db/controller/consumer"
	"github.com/wims-lti/wims-lti/internal/db/models"
	"github.com/wims-lti/wims-lti/internal/web/handler"
)

// Path is the base path of the consumer admin routes.
const Path = "/admin/consumers"

// Service is the consumer admin handler service.
type Service struct {
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate
}

// Handler is the consumer admin handler.
var Handler = Service{}

// createRequest is the JSON body of a consumer creation.
type createRequest struct {
	Key    string `json:"key" validate:"required,min=3,max=100"`
	Secret string `json:"secret" validate:"required,min=3,max=255"`
	Name   string `json:"name" validate:"max=2048"`
}

// view is a consumer as rendered by the API. The secret never leaves the
// database.
type view struct {
	ID   uint64 `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

func toView(c *models.Consumer) view {
	return view{ID: c.ID, Key: c.Key, Name: c.Name}
}

// Init initializes the consumer admin handler and registers its routes.
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
}

// List returns every registered consumer.
func (s *Service) List(c *fiber.Ctx) error {
	consumers, err := consumer.GetAll(s.db)
	if err != nil {
		return err
	}

	views := make([]view, len(consumers))
	for i := range consumers {
		views[i] = toView(&consumers[i])
	}

	return c.JSON(views)
}

// Create registers a new consumer.
func (s *Service) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	if err := s.validator.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	record := models.Consumer{Key: req.Key, Secret: req.Secret, Name: req.Name}
	if err := consumer.Create(s.db, &record); err != nil {
		if errors.Is(err, consumer.ErrConsumerAlreadyExists) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return err
	}

	log.Info().Str("key", record.Key).Msg("consumer created")

	return c.Status(fiber.StatusCreated).JSON(toView(&record))
}

// Delete removes a consumer.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid consumer id")
	}

	if err := consumer.Delete(s.db, id); err != nil {
		if errors.Is(err, consumer.ErrConsumerNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
