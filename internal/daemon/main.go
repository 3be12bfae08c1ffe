// Package daemon wires the whole service together: database, scheduled
// grade and reconciliation jobs, metrics endpoint and the web service.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/wims-lti/wims-lti/internal/config"
	"github.com/wims-lti/wims-lti/internal/db/dsn"
	"github.com/wims-lti/wims-lti/internal/db/models"
	"github.com/wims-lti/wims-lti/internal/gradesync"
	"github.com/wims-lti/wims-lti/internal/web"
)

const metricsReadHeaderTimeout = 5 * time.Second

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService web.Service
	syncer     *gradesync.Service
	cron       *cron.Cron
}

// openDB opens the configured database engine.
func openDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.DB.GormEngine {
	case "postgres":
		dialector = gormpostgres.Open(dsn.Create(cfg))
	case "sqlite":
		dialector = sqlite.Open(dsn.Create(cfg))
	default: // mysql
		dialector = gormmysql.Open(dsn.Create(cfg))
	}

	return gorm.Open(dialector, &gorm.Config{})
}

// migrate applies the schema of every model.
func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.AdminUser{},
		&models.Consumer{},
		&models.Provider{},
		&models.ClassMapping{},
		&models.UserMapping{},
		&models.ActivityMapping{},
		&models.GradeLink{},
	)
}

// Start runs the scheduled jobs, the metrics endpoint and the web service
// until shutdown.
func (d *Daemon) Start() error {
	d.cron.Start()
	defer d.cron.Stop()

	if d.cfg.Webserver.MetricsPort != 0 {
		go serveMetrics(d.cfg.Webserver.MetricsPort)
	}

	go d.webService.WaitShutdown()

	addr := fmt.Sprintf(":%d", d.cfg.Webserver.Port)
	log.Info().Str("addr", addr).Msg("starting web service")

	return d.webService.Start(addr)
}

func serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	log.Info().Str("addr", server.Addr).Msg("starting metrics endpoint")

	if err := server.ListenAndServe(); err != nil {
		log.Error().Err(err).Msg("metrics endpoint stopped")
	}
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	db, err := openDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
		return nil
	}

	if err := migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
		return nil
	}

	seed(cfg, db)

	syncer := gradesync.New(db, cfg.Sync.RemoteTimeout())

	scheduler := cron.New()

	if _, err := scheduler.AddFunc(cfg.Sync.GradeCronSpec(), func() {
		log.Info().Msg("scheduled grade synchronization starting")
		if err := syncer.SyncAll(context.Background()); err != nil {
			log.Error().Err(err).Msg("grade synchronization failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("cron", cfg.Sync.GradeCronSpec()).Msg("invalid grade cron expression")
		return nil
	}

	if _, err := scheduler.AddFunc(cfg.Sync.ReconcileCronSpec(), func() {
		log.Info().Msg("scheduled class reconciliation starting")
		if err := syncer.ReconcileClasses(context.Background()); err != nil {
			log.Error().Err(err).Msg("class reconciliation failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("cron", cfg.Sync.ReconcileCronSpec()).Msg("invalid reconcile cron expression")
		return nil
	}

	return &Daemon{
		cfg:        cfg,
		webService: *web.New(cfg, db),
		syncer:     syncer,
		cron:       scheduler,
	}
}

// RunOnce runs one synchronization pass outside the cron schedule, the way
// the sync command does.
func RunOnce(ctx context.Context, cfg *config.Config, reconcile bool) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}

	syncer := gradesync.New(db, cfg.Sync.RemoteTimeout())

	if err := syncer.SyncAll(ctx); err != nil {
		return err
	}

	if reconcile {
		return syncer.ReconcileClasses(ctx)
	}

	return nil
}
