package rent

import (
	"fmt"
	"time"
)

// LeadDays is how many days ahead of the due date an invoice may be created.
const LeadDays = 5

// Window is the result of placing a due day against a run date.
type Window struct {
	Period Period
	// DueDate is midnight of the due day in the run date's location.
	DueDate time.Time
	// CreationDay is the day of Period on which the lead window opens.
	CreationDay int
	// DaysUntilDue is negative once the due date has passed.
	DaysUntilDue int
	Eligible     bool
}

// ComputeWindow maps a lease due day and the run date to the billing period,
// the concrete due date and whether an invoice may be created today. Due dates
// already in the past stay eligible so a skipped run catches up.
func ComputeWindow(dueDay int, today time.Time) (Window, error) {
	if dueDay < 1 || dueDay > 31 {
		return Window{}, fmt.Errorf("%w: due day %d outside 1..31", ErrValidation, dueDay)
	}
	period := PeriodOf(today)
	creationDay := dueDay - LeadDays
	if creationDay <= 0 {
		period = period.Previous()
		creationDay += period.Days()
	}
	due := time.Date(period.Year, period.Month, clampDay(dueDay, period), 0, 0, 0, 0, today.Location())
	diff := daysBetween(today, due)
	return Window{
		Period:       period,
		DueDate:      due,
		CreationDay:  creationDay,
		DaysUntilDue: diff,
		Eligible:     diff <= LeadDays,
	}, nil
}

// DueDateFor returns the clamped due date of dueDay inside period.
func DueDateFor(dueDay int, period Period, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(period.Year, period.Month, clampDay(dueDay, period), 0, 0, 0, 0, loc)
}

func clampDay(day int, period Period) int {
	if last := period.Days(); day > last {
		return last
	}
	return day
}

// daysBetween counts calendar days from the date of from to the date of to.
// For a due date at midnight this equals ceil((to - from) / 24h).
func daysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
