// Package web runs the HTTP surface of the service: the LTI launch
// endpoints, the public server listing and the authenticated admin API.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/wims-lti/wims-lti/internal/auth"
	"github.com/wims-lti/wims-lti/internal/config"
	fiberlogger "github.com/wims-lti/wims-lti/internal/logger/adapter/fiber"
	consumeradmin "github.com/wims-lti/wims-lti/internal/web/handler/admin/consumer"
	provideradmin "github.com/wims-lti/wims-lti/internal/web/handler/admin/provider"
	"github.com/wims-lti/wims-lti/internal/web/handler/lti"
	"github.com/wims-lti/wims-lti/internal/web/handler/status"
	authmw "github.com/wims-lti/wims-lti/internal/web/middleware/auth"
)

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	db           *gorm.DB
	authService  *auth.Service
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown of the service.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	// stop fiber http server
	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, db *gorm.DB) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if db == nil {
		panic("db cannot be nil")
	}

	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
		},
	)

	// access logging
	app.Use(fiberlogger.New(fiberlogger.Config{
		Config:        cfg.Log,
		CheckAliveURI: status.AlivePath,
	}))

	authService := auth.NewService(db)

	service := &Service{
		cfg:         cfg,
		App:         app,
		db:          db,
		authService: authService,
	}
	service.alive.Store(true)

	// public surface
	status.Handler.Init(app, cfg, db, service.alive.Load)
	lti.Handler.Init(app, cfg, db)

	// admin API behind basic auth
	app.Use("/admin", authmw.New(authService))

	consumeradmin.Handler.Init(app, cfg, db)
	provideradmin.Handler.Init(app, cfg, db)

	return service
}
