package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atcfeed/sessiond/pkg/config"
	storepg "github.com/atcfeed/sessiond/pkg/store/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Apply any pending Postgres schema migrations and exit.

serve also applies migrations automatically at startup; this command
is for running them ahead of time, e.g. in a deploy step.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx := context.Background()

	if err := storepg.RunMigrations(ctx, cfg.Database); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	fmt.Println("migrations applied")
	return nil
}
