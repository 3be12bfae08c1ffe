// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wims-lti",
	Short: "wims-lti is an LTI bridge between LMS instances and WIMS servers",
	Long: `wims-lti is an LTI provider that lets instructors launch WIMS-hosted
classes and exercise sheets from inside an LMS, provisions the matching
class and user accounts on the WIMS server, and periodically reports the
grades recorded by WIMS back to the LMS gradebook.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
