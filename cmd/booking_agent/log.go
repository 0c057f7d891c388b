package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/court-booker/internal/observability"
	"github.com/jonathan/court-booker/internal/store"
)

var logCommand = &cobra.Command{
	Use:   "log",
	Short: "Show recent booking log entries",
	RunE:  showLogCmd,
}

var (
	logDatabaseURL string
	logLimit       int
)

func init() {
	logCommand.Flags().StringVar(&logDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	logCommand.Flags().IntVarP(&logLimit, "limit", "n", 20, "Number of entries to show")

	rootCmd.AddCommand(logCommand)
}

func showLogCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	dbURL := logDatabaseURL
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}

	db, err := store.Connect(ctx, dbURL)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.ReadRecent(ctx, logLimit)
	if err != nil {
		return err
	}

	observability.NewPrinter(os.Stdout).PrintLogEntries(entries)
	return nil
}
