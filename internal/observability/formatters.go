// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/court-booker/internal/schedule"
	"github.com/jonathan/court-booker/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintTargetDate outputs the computed booking target for the run.
func (p *Printer) PrintTargetDate(target types.TargetDate, leadDays int) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Date:     %s (%s)\n", target.CalendarDate(), target.WeekdayName))
	sb.WriteString(fmt.Sprintf("Lead:     %d days ahead", leadDays))
	p.printBox("BOOKING TARGET", sb.String())
}

// PrintAssignments outputs the rows selected for the run.
func (p *Printer) PrintAssignments(assignments []types.Assignment) {
	if len(assignments) == 0 {
		p.printBox("ASSIGNMENTS", "No assignments match the target weekday")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d assignment(s) selected:\n\n", len(assignments)))

	count := min(len(assignments), maxItemsToShow)
	for i := 0; i < count; i++ {
		a := assignments[i]
		sb.WriteString(fmt.Sprintf("• %s -> %s at %s\n", a.AccountID, a.ResourceID, schedule.FormatTimeForDisplay(a.TimeOfDay)))
	}
	if len(assignments) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more", len(assignments)-maxItemsToShow))
	}

	p.printBox("ASSIGNMENTS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintScheduleIssues outputs validation problems found in the assignment
// table.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintScheduleIssues(issues []string) {
	if len(issues) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "✅ SCHEDULE OK")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d issue(s):\n\n", len(issues)))
	for i, issue := range issues {
		if len(issue) > 50 {
			issue = issue[:47] + "..."
		}
		sb.WriteString(fmt.Sprintf("⚠ %s\n", issue))
		if i < len(issues)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("SCHEDULE ISSUES", sb.String())
}

// PrintSummary outputs the reconciled run summary.
func (p *Printer) PrintSummary(s types.RunSummary) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Target:    %s (%s)\n", s.TargetDate.CalendarDate(), s.TargetDate.WeekdayName))
	sb.WriteString(fmt.Sprintf("Attempted: %d   Booked: %d   Failed: %d\n", s.TotalAttempted, s.TotalSucceeded, s.TotalFailed))
	if s.Reconciled {
		sb.WriteString("(totals rebuilt from session records)\n")
	}
	sb.WriteString("\n")

	for _, o := range s.PerSession {
		line := fmt.Sprintf("• %s (%s): %s", o.AccountID, o.ResourceID, o.State)
		if o.FailReason != types.FailNone {
			line += fmt.Sprintf(" [%s]", o.FailReason)
		}
		sb.WriteString(line + "\n")
		for _, slot := range o.Successful {
			sb.WriteString(fmt.Sprintf("    ✓ %s %s\n", slot.Date, schedule.FormatTimeForDisplay(slot.Time)))
		}
		for _, slot := range o.Failed {
			sb.WriteString(fmt.Sprintf("    ✗ %s %s\n", slot.Date, schedule.FormatTimeForDisplay(slot.Time)))
		}
	}

	p.printBox("RUN SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSessionTrail outputs the tail of one session's log trail.
func (p *Printer) PrintSessionTrail(label string, lines []string) {
	if len(lines) == 0 {
		return
	}

	var sb strings.Builder
	start := 0
	if len(lines) > maxItemsToShow {
		start = len(lines) - maxItemsToShow
		sb.WriteString(fmt.Sprintf("... %d earlier line(s)\n", start))
	}
	for _, line := range lines[start:] {
		sb.WriteString(line + "\n")
	}

	p.printBox("TRAIL "+label, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintLogEntries outputs recent booking log entries, newest first.
func (p *Printer) PrintLogEntries(entries []types.LogEntry) {
	if len(entries) == 0 {
		p.printBox("BOOKING LOG", "No entries recorded")
		return
	}

	var sb strings.Builder
	for i, e := range entries {
		sb.WriteString(fmt.Sprintf("%s  %s\n", e.Timestamp.Format("2006-01-02 15:04"), e.Status))
		sb.WriteString(fmt.Sprintf("  %s: %s %s %s\n", e.AccountID, e.ResourceID, e.Date, e.Time))
		if e.Detail != "" {
			detail := e.Detail
			if len(detail) > 50 {
				detail = detail[:47] + "..."
			}
			sb.WriteString(fmt.Sprintf("  %s\n", detail))
		}
		if i < len(entries)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("BOOKING LOG", strings.TrimSuffix(sb.String(), "\n"))
}
