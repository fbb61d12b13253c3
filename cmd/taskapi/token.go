package main

import (
	"fmt"
	"time"

	"task-management-api/internal/middleware"

	"github.com/spf13/cobra"
)

func newTokenCmd(a *app) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Print a bearer token accepted when AUTH_ENABLED is set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := middleware.IssueToken(middleware.AuthConfig{
				Secret: a.cfg.Auth.JWTSecret,
				Issuer: a.cfg.Auth.Issuer,
			}, args[0], ttl)
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
