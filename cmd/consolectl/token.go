package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	consolehttp "naimuAdmin/internal/console/http"
)

func newTokenCmd() *cobra.Command {
	var (
		userID int64
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			if userID <= 0 || role == "" {
				return fmt.Errorf("--user and --role are required")
			}
			token, err := consolehttp.IssueToken([]byte(secret), consolehttp.Identity{
				UserID:    userID,
				Role:      role,
				SessionID: uuid.NewString(),
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "admin user id")
	cmd.Flags().StringVar(&role, "role", "", "operator role")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")
	return cmd
}
