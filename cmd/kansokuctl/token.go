package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/kansoku/internal/auth"
	"github.com/ashita-ai/kansoku/internal/model"
)

func newTokenCmd() *cobra.Command {
	var (
		secret string
		email  string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Sign a bearer token for local development",
		Long: `Signs an HS256 token the server accepts when KANSOKU_JWT_SECRET matches.

Example:
  kansokuctl token u-42 --role admin --ttl 2h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("KANSOKU_JWT_SECRET")
			}
			if secret == "" {
				return errors.New("no signing secret: pass --secret or set KANSOKU_JWT_SECRET")
			}
			r := model.ParseUserRole(role)
			if string(r) != role {
				return fmt.Errorf("unknown role %q (want pending, user or admin)", role)
			}

			v, err := auth.NewVerifier(secret)
			if err != nil {
				return err
			}
			tok, exp, err := v.IssueToken(args[0], email, r, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default: KANSOKU_JWT_SECRET)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&role, "role", string(model.RoleUser), "role claim: pending, user or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
