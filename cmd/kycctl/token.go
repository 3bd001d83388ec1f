package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tasdeeq.app/internal/auth"
)

func newTokenCmd(a *app) *cobra.Command {
	var (
		user  string
		email string
		roles []string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed access token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			for _, role := range roles {
				if _, ok := auth.RolePermissions[role]; !ok {
					return fmt.Errorf("unknown role %q", role)
				}
			}
			if cfg.Auth.Secret != "" {
				auth.SetSecret(cfg.Auth.Secret)
			}
			tok, err := auth.GenerateToken(user, email, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "subject user id")
	cmd.Flags().StringVar(&email, "email", "", "optional email claim")
	cmd.Flags().StringSliceVar(&roles, "role", []string{auth.RoleUser}, "role claim (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
