package main

import (
	"context"
	"fmt"
	"os"
	mongoMigration "propbook/internal/migrations/mongo"
	"propbook/pkg/config"
	"time"

	"github.com/spf13/cobra"
)

const JobName = "mongo-migration"

func main() {
	var timeout time.Duration

	rootCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create propbook collections, validators and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			cfg := config.Load(JobName)
			cfg.SetMongo()
			defer cfg.Client.GracefulShutdown()

			cfg.Log.Info("Starting Mongo migration job")
			db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
			if err := mongoMigration.RunMigration(ctx, db, cfg.Log); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			return nil
		},
	}
	rootCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall migration deadline")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
