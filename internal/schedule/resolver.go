// Package schedule resolves the run's target date and selects the day's
// booking assignments, with tolerant parsing of weekday and time text.
package schedule

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/court-booker/internal/types"
)

// DefaultLeadDays is how far ahead the site releases slots. The target
// date for a run is always today plus this lead time.
const DefaultLeadDays = 35

var daySynonyms = map[string]string{
	"monday": "Monday", "mon": "Monday",
	"tuesday": "Tuesday", "tue": "Tuesday", "tues": "Tuesday",
	"wednesday": "Wednesday", "wed": "Wednesday", "weds": "Wednesday",
	"thursday": "Thursday", "thu": "Thursday", "thur": "Thursday", "thurs": "Thursday",
	"friday": "Friday", "fri": "Friday",
	"saturday": "Saturday", "sat": "Saturday",
	"sunday": "Sunday", "sun": "Sunday",
}

// ComputeTargetDate returns the date leadDays from now together with its
// weekday name. Pure function of its inputs.
func ComputeTargetDate(now time.Time, leadDays int) types.TargetDate {
	target := now.AddDate(0, 0, leadDays)
	return types.TargetDate{
		Date:        target,
		WeekdayName: target.Weekday().String(),
	}
}

// NormalizeDay converts any reasonable weekday spelling to its canonical
// name ("tue", "Tues", "TUESDAY" all become "Tuesday").
func NormalizeDay(input string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(input))
	if trimmed == "" {
		return "", fmt.Errorf("day input is empty")
	}
	day, ok := daySynonyms[trimmed]
	if !ok {
		return "", fmt.Errorf("could not parse day name %q", input)
	}
	return day, nil
}

// NormalizeTime converts any reasonable time spelling to canonical 24-hour
// HHMM form: "8am" -> "0800", "4pm" -> "1600", "08:00" -> "0800",
// "12:30am" -> "0030", "20" -> "2000". Idempotent on valid output.
func NormalizeTime(input string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(input))
	if trimmed == "" {
		return "", fmt.Errorf("time input is empty")
	}

	isPM := strings.Contains(trimmed, "pm")
	isAM := strings.Contains(trimmed, "am")

	var hour, minute int
	if isPM || isAM {
		trimmed = strings.NewReplacer("am", "", "pm", "", " ", "").Replace(trimmed)

		var err error
		if strings.Contains(trimmed, ":") {
			parts := strings.SplitN(trimmed, ":", 2)
			hour, err = strconv.Atoi(parts[0])
			if err == nil {
				minute, err = strconv.Atoi(parts[1])
			}
		} else {
			hour, err = strconv.Atoi(trimmed)
		}
		if err != nil {
			return "", fmt.Errorf("invalid time format %q", input)
		}
		if hour < 1 || hour > 12 {
			return "", fmt.Errorf("hour must be 1-12 with am/pm, got %d", hour)
		}

		// 12am is midnight, 12pm is noon.
		switch {
		case isPM && hour != 12:
			hour += 12
		case isAM && hour == 12:
			hour = 0
		}
	} else {
		digits := strings.NewReplacer(":", "", ".", "", " ", "").Replace(trimmed)
		if _, err := strconv.Atoi(digits); err != nil {
			return "", fmt.Errorf("invalid time format %q", input)
		}

		switch len(digits) {
		case 1, 2: // bare hour, e.g. "8" or "20"
			h, _ := strconv.Atoi(digits)
			hour, minute = h, 0
		case 3: // "800" -> 08:00
			h, _ := strconv.Atoi(digits[:1])
			m, _ := strconv.Atoi(digits[1:])
			hour, minute = h, m
		case 4:
			h, _ := strconv.Atoi(digits[:2])
			m, _ := strconv.Atoi(digits[2:])
			hour, minute = h, m
		default:
			return "", fmt.Errorf("invalid time format %q", input)
		}
	}

	if hour < 0 || hour > 23 {
		return "", fmt.Errorf("hour must be between 0-23, got %d", hour)
	}
	if minute < 0 || minute > 59 {
		return "", fmt.Errorf("minute must be between 0-59, got %d", minute)
	}

	return fmt.Sprintf("%02d%02d", hour, minute), nil
}

// SelectAssignments normalizes each row and returns those whose weekday
// matches weekdayName. A malformed row is skipped with a warning; selection
// never fails the run as a whole.
func SelectAssignments(rows []types.Assignment, weekdayName string) []types.Assignment {
	var selected []types.Assignment
	for _, row := range rows {
		day, err := NormalizeDay(row.Weekday)
		if err != nil {
			log.Printf("schedule: skipping row for %q: %v", row.AccountID, err)
			continue
		}
		tod, err := NormalizeTime(row.TimeOfDay)
		if err != nil {
			log.Printf("schedule: skipping row for %q: %v", row.AccountID, err)
			continue
		}
		if day != weekdayName {
			continue
		}

		row.Weekday = day
		row.TimeOfDay = tod
		selected = append(selected, row)
	}
	return selected
}

// ValidateSchedule checks a full assignment table for issues worth
// surfacing before a run: unparseable rows, duplicate account/day/time
// combinations, and times outside court opening hours. The returned issues
// are advisory; none of them abort a run.
func ValidateSchedule(rows []types.Assignment) []string {
	var issues []string
	seen := make(map[string]bool)

	for _, row := range rows {
		day, err := NormalizeDay(row.Weekday)
		if err != nil {
			issues = append(issues, fmt.Sprintf("row %s/%s: %v", row.AccountID, row.ResourceID, err))
			continue
		}
		tod, err := NormalizeTime(row.TimeOfDay)
		if err != nil {
			issues = append(issues, fmt.Sprintf("row %s/%s: %v", row.AccountID, row.ResourceID, err))
			continue
		}

		hour, _ := strconv.Atoi(tod[:2])
		if hour < 6 || hour > 22 {
			issues = append(issues, fmt.Sprintf("row %s/%s: unusual court time %s", row.AccountID, row.ResourceID, tod))
		}

		key := row.AccountID + "|" + day + "|" + tod
		if seen[key] {
			issues = append(issues, fmt.Sprintf("duplicate assignment: %s %s %s", row.AccountID, day, tod))
		}
		seen[key] = true
	}

	return issues
}

// FormatTimeForDisplay converts canonical HHMM into a 12-hour display
// form: "1600" -> "4:00 PM", "0000" -> "12:00 AM". Unparseable input is
// returned unchanged.
func FormatTimeForDisplay(hhmm string) string {
	if len(hhmm) != 4 {
		return hhmm
	}
	hour, err := strconv.Atoi(hhmm[:2])
	if err != nil {
		return hhmm
	}
	minute, err := strconv.Atoi(hhmm[2:])
	if err != nil {
		return hhmm
	}

	period := "AM"
	displayHour := hour
	switch {
	case hour == 0:
		displayHour = 12
	case hour == 12:
		period = "PM"
	case hour > 12:
		displayHour = hour - 12
		period = "PM"
	}

	return fmt.Sprintf("%d:%02d %s", displayHour, minute, period)
}
