package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"go-storefront/web/db"
	"go-storefront/web/middleware"
)

func tokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token [email]",
		Short: "Print a bearer token for an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			var user db.User
			if err := a.conn.WithContext(cmd.Context()).
				First(&user, "email = ?", strings.ToLower(args[0])).Error; err != nil {
				return fmt.Errorf("find user %s: %w", args[0], err)
			}

			token, err := middleware.IssueToken(a.cfg.JWTSecret, user.ID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}
