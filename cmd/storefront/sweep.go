package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"go-storefront/payment/checkout"
)

func sweepCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Fail pending payments older than the TTL",
		Long: `Fail pending payments that never came back from the gateway and clear
their verification tokens. Meant to run from cron.

Examples:
  storefront sweep
  storefront sweep --ttl 2h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if ttl <= 0 {
				ttl = a.cfg.PendingTTL
			}
			n, err := checkout.NewSweeper(checkout.NewStore(a.conn), ttl, a.logger).Sweep(cmd.Context(), time.Now())
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d pending payments\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "age after which a pending payment is failed (default $PENDING_TTL)")

	return cmd
}
