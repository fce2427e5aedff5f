package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-knxip/internal/auth"
)

var errNoSecret = errors.New("api.jwt.secret is not set; the API is open and needs no token")

type tokenFlags struct {
	subject string
	role    string
	ttl     time.Duration
}

func newTokenCmd(root *rootFlags) *cobra.Command {
	flags := &tokenFlags{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the monitor API",
		Long: `Sign a token with api.jwt.secret. Viewers may read status, inventory and
the live stream; operators may also send telegrams.`,
		Example: `  # A read-only token for a dashboard
  knxip token --subject dashboard

  # An operator token valid for one day
  knxip token --subject ops --role operator --ttl 24h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			role, err := auth.ParseRole(flags.role)
			if err != nil {
				return err
			}

			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			secret := a.cfg.API.JWT.Secret
			if secret == "" {
				return errNoSecret
			}
			ttl := flags.ttl
			if ttl == 0 {
				ttl = time.Duration(a.cfg.API.JWT.TokenTTL) * time.Minute
			}

			token, err := auth.GenerateToken(flags.subject, role, secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.subject, "subject", "knxip", "Who the token is for")
	cmd.Flags().StringVar(&flags.role, "role", string(auth.RoleViewer), "Role: viewer|operator")
	cmd.Flags().DurationVar(&flags.ttl, "ttl", 0, "Lifetime (default: api.jwt.token_ttl minutes)")

	return cmd
}
