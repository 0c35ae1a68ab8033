package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/whattodo/core/internal/adapters/remote"
	"github.com/whattodo/core/internal/application/services"
	"github.com/whattodo/core/internal/domain/entities"
	"github.com/whattodo/core/internal/infrastructure/config"
	"github.com/whattodo/core/internal/infrastructure/database"
)

// NewRemoteCommand groups the remote store commands.
func NewRemoteCommand(opts *rootOptions) *cobra.Command {
	remoteCmd := &cobra.Command{
		Use:   "remote",
		Short: "Remote store commands",
		Long:  "Manage the postgres remote schema and pull a signed-in user's remote document",
	}

	remoteCmd.AddCommand(newMigrateCommand(opts))

	var token string
	pullCmd := &cobra.Command{
		Use:   "pull",
		Short: "Sign in and merge the remote document into the local one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if !a.cfg.Remote.Enabled {
					return entities.ErrRemoteDisabled
				}

				state, err := a.auth.SignIn(token)
				if err != nil {
					return err
				}

				store, err := remote.Open(ctx, a.cfg, a.logger)
				if err != nil {
					return fmt.Errorf("failed to open remote store: %w", err)
				}
				defer store.Close()

				remoteSync := services.NewRemoteSync(store, a.coordinator, a.auth, a.cfg.Remote.PathPrefix, a.metrics, a.logger)
				doc, err := remoteSync.MergeOnSignIn(ctx, state.UserID)
				if err != nil {
					return err
				}

				if err := remoteSync.Push(ctx, state.UserID, doc); err != nil {
					return err
				}

				fmt.Fprintf(out(cmd), "merged %d tasks and %d labels for %s\n", doc.TaskCount(), len(doc.Labels), state.UserID)
				return nil
			})
		},
	}
	pullCmd.Flags().StringVar(&token, "token", "", "session token (required)")
	_ = pullCmd.MarkFlagRequired("token")

	remoteCmd.AddCommand(pullCmd)
	return remoteCmd
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Postgres remote schema migrations",
		Long:  "Manage the remote store migrations (up, down, version)",
	}

	var steps int
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Run up migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, opts, "up", steps)
		},
	}
	upCmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to apply (0 for all)")

	var downSteps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Run down migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, opts, "down", downSteps)
		},
	}
	downCmd.Flags().IntVar(&downSteps, "steps", 0, "number of migrations to revert (0 for all)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openRemoteDB(opts)
			if err != nil {
				return err
			}
			defer db.Close()

			version, dirty, err := remote.MigrationVersion(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Current migration version: %d\n", version)
			fmt.Fprintf(out(cmd), "Dirty: %t\n", dirty)
			return nil
		},
	}

	migrateCmd.AddCommand(upCmd, downCmd, versionCmd)
	return migrateCmd
}

func runMigration(cmd *cobra.Command, opts *rootOptions, direction string, steps int) error {
	db, err := openRemoteDB(opts)
	if err != nil {
		return err
	}
	defer db.Close()

	var changed bool
	switch direction {
	case "up":
		changed, err = remote.MigrateUp(db, steps)
	case "down":
		changed, err = remote.MigrateDown(db, steps)
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if !changed {
		fmt.Fprintln(out(cmd), "No migrations to run")
	} else {
		fmt.Fprintf(out(cmd), "Migration %s completed successfully\n", direction)
	}
	return nil
}

// openRemoteDB connects to postgres without touching local storage.
func openRemoteDB(opts *rootOptions) (*database.DB, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
