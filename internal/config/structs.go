package config

import (
	"time"

	"github.com/wims-lti/wims-lti/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	Sync      Sync
}

// Webserver implement webserver settings.
type Webserver struct {
	Domain       string // domain name for the webserver
	Port         int    // listening port for the webserver
	MetricsPort  int    // listening port for the prometheus /metrics endpoint, 0 disables it
	ShutDownTime int    // wait time for shutdown
	URL          string // base url for the webserver, used to build per-server launch URLs
}

// Sync holds the settings of the scheduled grade and class jobs.
type Sync struct {
	// GradeCron triggers the job sending every grade recorded by the WIMS
	// servers back to the owning LMS. Standard 5-field cron expression.
	GradeCron string
	// ReconcileCron triggers the job checking that every registered class
	// still exists on its WIMS server, deleting the local mappings if not.
	ReconcileCron string
	// Timeout bounds every request sent to a WIMS server or an LMS
	// outcomes endpoint. Should be increased if some WIMS server hosts a
	// lot of classes or users.
	Timeout time.Duration
}

const (
	// DefaultJobCron runs the scheduled jobs at 7:00 and 19:00.
	DefaultJobCron = "0 7,19 * * *"
	// DefaultRemoteTimeout bounds WIMS and LMS calls.
	DefaultRemoteTimeout = 5 * time.Second
)

// GradeCronSpec returns the configured grade-sync cron expression or the default.
func (s Sync) GradeCronSpec() string {
	if s.GradeCron == "" {
		return DefaultJobCron
	}

	return s.GradeCron
}

// ReconcileCronSpec returns the configured reconciliation cron expression or the default.
func (s Sync) ReconcileCronSpec() string {
	if s.ReconcileCron == "" {
		return DefaultJobCron
	}

	return s.ReconcileCron
}

// RemoteTimeout returns the configured remote call timeout or the default.
func (s Sync) RemoteTimeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultRemoteTimeout
	}

	return s.Timeout
}
