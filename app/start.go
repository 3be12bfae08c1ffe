package app

import (
	"github.com/spf13/cobra"

	"github.com/wims-lti/wims-lti/internal/config"
	"github.com/wims-lti/wims-lti/internal/daemon"
)

func init() { //nolint: gochecknoinits
	startCmd.Flags().StringVar(&configPath, "config", "", "Path to the configuration directory")
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable dev mode")

	rootCmd.AddCommand(startCmd)
}

var (
	configPath string // Path to the configuration directory

	cfg     config.Config
	err     error
	devMode bool

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the wims-lti service",
		PreRun: func(_ *cobra.Command, _ []string) {
			if cfg, err = config.ReadConfig(configPath); err != nil {
				panic(err)
			}

			if devMode {
				cfg.DevMode = true
			}
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			daemon := daemon.New(&cfg)
			if err := daemon.Start(); err != nil {
				return err
			}

			return nil
		},
	}
)
