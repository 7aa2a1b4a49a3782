// File: cmd/inspect.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/formparse"
	"github.com/xkilldash9x/formpilot/internal/observability"
)

func newInspectCmd() *cobra.Command {
	var url, format string

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Prints the question structure extracted from a form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			policy, err := formparse.NewURLPolicy(cfg.Form.AllowedURLs)
			if err != nil {
				return err
			}
			if err := policy.Check(url); err != nil {
				return err
			}

			sess, err := newBrowserSession(ctx, cfg.Browser, logger)
			if err != nil {
				return fmt.Errorf("failed to start browser session: %w", err)
			}
			defer func() {
				if err := sess.Close(); err != nil {
					logger.Warn("Error closing browser session", zap.Error(err))
				}
			}()

			questions, err := formparse.NewExtractor(cfg.Form, logger).Extract(ctx, sess, url)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), format, questions)
		},
	}

	inspectCmd.Flags().StringVarP(&url, "url", "u", "", "Google Form viewform URL")
	inspectCmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")
	_ = inspectCmd.MarkFlagRequired("url")
	return inspectCmd
}
