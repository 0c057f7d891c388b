// Package notify delivers the end-of-run report.
package notify

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/court-booker/internal/schedule"
	"github.com/jonathan/court-booker/internal/types"
)

// Notifier delivers a finished run's summary somewhere a human reads it.
type Notifier interface {
	Notify(ctx context.Context, summary types.RunSummary) error
}

// Console writes the report to a terminal stream.
type Console struct {
	out io.Writer
}

// NewConsole returns a Notifier writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Notify renders the summary as a plain-text report.
func (c *Console) Notify(_ context.Context, summary types.RunSummary) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Booking run %s\n", summary.RunID))
	sb.WriteString(fmt.Sprintf("Target date: %s (%s)\n", summary.TargetDate.CalendarDate(), summary.TargetDate.WeekdayName))
	sb.WriteString(fmt.Sprintf("Attempted %d, booked %d, failed %d\n", summary.TotalAttempted, summary.TotalSucceeded, summary.TotalFailed))
	if summary.Reconciled {
		sb.WriteString("Totals were rebuilt from per-session records.\n")
	}
	sb.WriteString("\n")

	for _, o := range summary.PerSession {
		sb.WriteString(fmt.Sprintf("%s (%s): %s", o.AccountID, o.ResourceID, o.State))
		if o.FailReason != types.FailNone {
			sb.WriteString(fmt.Sprintf(" [%s]", o.FailReason))
		}
		sb.WriteString("\n")
		for _, slot := range o.Successful {
			sb.WriteString(fmt.Sprintf("  booked %s at %s\n", slot.Date, schedule.FormatTimeForDisplay(slot.Time)))
		}
		for _, slot := range o.Failed {
			sb.WriteString(fmt.Sprintf("  missed %s at %s\n", slot.Date, schedule.FormatTimeForDisplay(slot.Time)))
		}
	}

	_, err := fmt.Fprint(c.out, sb.String())
	return err
}
