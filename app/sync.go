package app

import (
	"github.com/spf13/cobra"

	"github.com/wims-lti/wims-lti/internal/config"
	"github.com/wims-lti/wims-lti/internal/daemon"
)

func init() { //nolint: gochecknoinits
	syncCmd.Flags().StringVar(&configPath, "config", "", "Path to the configuration directory")
	syncCmd.Flags().BoolVar(&reconcile, "reconcile", false,
		"Also check that every registered class still exists on its WIMS server")

	rootCmd.AddCommand(syncCmd)
}

var (
	reconcile bool

	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Run one grade synchronization pass and exit",
		Long: `sync fetches the current scores of every registered activity from its
WIMS server and reports them to the owning LMS, exactly as the scheduled
job does. Useful for operators to push grades outside the cron schedule.`,
		PreRun: func(_ *cobra.Command, _ []string) {
			if cfg, err = config.ReadConfig(configPath); err != nil {
				panic(err)
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return daemon.RunOnce(cmd.Context(), &cfg, reconcile)
		},
	}
)
