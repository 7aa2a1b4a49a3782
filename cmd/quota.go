// File: cmd/quota.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/observability"
	"github.com/xkilldash9x/formpilot/internal/quota"
)

func newQuotaCmd() *cobra.Command {
	var callerKey string

	quotaCmd := &cobra.Command{
		Use:   "quota",
		Short: "Shows how many responses a caller may still submit today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()
			if callerKey == "" {
				callerKey = defaultCallerKey()
			}

			store, err := openQuotaStore(ctx, cfg.Quota, logger)
			if err != nil {
				return fmt.Errorf("failed to open quota store: %w", err)
			}
			defer func() {
				if err := store.Close(); err != nil {
					logger.Warn("Error closing quota store", zap.Error(err))
				}
			}()

			left, err := store.Remaining(ctx, callerKey)
			if err != nil {
				return err
			}
			if left == quota.Unlimited {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: unlimited (quota backend %q)\n", callerKey, cfg.Quota.Backend)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d of %d responses remaining today\n", callerKey, left, cfg.Quota.DailyLimit)
			return nil
		},
	}

	quotaCmd.Flags().StringVar(&callerKey, "caller-key", "", "Caller key to look up (default derived from the hostname)")
	return quotaCmd
}
