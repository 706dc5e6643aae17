package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/atcfeed/sessiond/pkg/config"
	storepg "github.com/atcfeed/sessiond/pkg/store/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print queue depth and processing freshness",
	Long: `Query the database directly for queue depth, the age of the
newest archived snapshot, and the most recent activity sample.

sessiond has no control API of its own; this command reports health by
reading the same tables serve writes to.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx := context.Background()

	store, err := storepg.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	depth, err := storepg.QueueDepth(ctx, store.Pool())
	if err != nil {
		return fmt.Errorf("failed to read queue depth: %w", err)
	}
	fmt.Printf("queue depth:        %d\n", depth)

	age, ok, err := storepg.NewestArchiveAge(ctx, store.Pool(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to read newest archive age: %w", err)
	}
	if ok {
		fmt.Printf("newest archive age: %s\n", age.Round(time.Second))
	} else {
		fmt.Println("newest archive age: no archived snapshots yet")
	}

	stats, ok, err := storepg.LatestActivityStats(ctx, store.Pool())
	if err != nil {
		return fmt.Errorf("failed to read activity stats: %w", err)
	}
	if ok {
		fmt.Printf("active controllers: %d\n", stats.ActiveControllers)
		fmt.Printf("active callsigns:   %d\n", stats.ActiveCallsigns)
		fmt.Printf("active positions:   %d\n", stats.ActivePositions)
		fmt.Printf("observed at:        %s\n", stats.ObservedAt.Format(time.RFC3339))
	} else {
		fmt.Println("no activity samples yet")
	}

	return nil
}
