package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/whattodo/core/internal/application/services"
	"github.com/whattodo/core/internal/infrastructure/config"
)

// NewTokenCommand creates session tokens for development and scripting.
func NewTokenCommand(opts *rootOptions) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Session token commands",
	}

	var userID string
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a session token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}

			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}

			token, err := services.NewAuthService(cfg.JWT, nil).IssueToken(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), token)
			return nil
		},
	}
	issueCmd.Flags().StringVar(&userID, "user", "", "user id the token signs in as")

	tokenCmd.AddCommand(issueCmd)
	return tokenCmd
}
