package main

import (
	"strings"

	"github.com/spf13/cobra"

	"trackline/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var development bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run workers, the continuous monitor, and the HTTP API in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var level string
			if ctx.logLevelFlag != nil {
				level = strings.TrimSpace(*ctx.logLevelFlag)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    level,
				Development: development,
			})
		},
	}
	cmd.Flags().BoolVar(&development, "dev", false, "Console logs at debug level")
	return cmd
}
