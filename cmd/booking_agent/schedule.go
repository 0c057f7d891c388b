package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/court-booker/internal/observability"
	"github.com/jonathan/court-booker/internal/schedule"
	"github.com/jonathan/court-booker/internal/store"
	"github.com/jonathan/court-booker/internal/types"
)

var scheduleCommand = &cobra.Command{
	Use:   "schedule",
	Short: "Preview the target date and the assignments a run would book",
	Long: `Computes the target date from today's date and the lead time, validates the
assignment table, and prints what a run started now would attempt. Nothing
is booked.`,
	RunE: previewScheduleCmd,
}

var (
	scheduleAssignments string
	scheduleDatabaseURL string
	scheduleLeadDays    int
)

func init() {
	scheduleCommand.Flags().StringVarP(&scheduleAssignments, "assignments", "a", "", "Path to assignments CSV or JSON file")
	scheduleCommand.Flags().StringVar(&scheduleDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	scheduleCommand.Flags().IntVar(&scheduleLeadDays, "lead-days", schedule.DefaultLeadDays, "How many days ahead the venue releases slots")

	rootCmd.AddCommand(scheduleCommand)
}

func previewScheduleCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	dbURL := scheduleDatabaseURL
	if dbURL == "" && scheduleAssignments == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}

	var (
		rows []types.Assignment
		err  error
	)
	switch {
	case dbURL != "":
		db, cerr := store.Connect(ctx, dbURL)
		if cerr != nil {
			return cerr
		}
		defer db.Close()
		rows, err = db.ReadAssignments(ctx)
	case scheduleAssignments != "":
		rows, err = readAssignmentsFile(scheduleAssignments)
	default:
		return fmt.Errorf("either --assignments or --db-url must be provided")
	}
	if err != nil {
		return err
	}

	target := schedule.ComputeTargetDate(time.Now(), scheduleLeadDays)

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintTargetDate(target, scheduleLeadDays)
	printer.PrintScheduleIssues(schedule.ValidateSchedule(rows))
	printer.PrintAssignments(schedule.SelectAssignments(rows, target.WeekdayName))
	return nil
}
