package rent

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus enumerates rent invoice statuses.
type InvoiceStatus string

const (
	StatusPending InvoiceStatus = "pending"
	StatusPaid    InvoiceStatus = "paid"
	StatusOverdue InvoiceStatus = "overdue"
)

// Lease is the read-only view of a rent tenancy the generator works from.
type Lease struct {
	TenantID     int64           `validate:"required,gt=0"`
	TenantName   string          `validate:"required"`
	DueDay       int             `validate:"required,min=1,max=31"`
	RentAmount   decimal.Decimal `validate:"-"`
	Active       bool
	UnitID       int64  `validate:"required,gt=0"`
	UnitName     string `validate:"required"`
	PropertyName string
}

// Invoice is the billing record for one tenant and one due date.
type Invoice struct {
	ID        uuid.UUID
	TenantID  int64
	DueDate   time.Time
	Status    InvoiceStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Period returns the billing period the invoice belongs to.
func (i Invoice) Period() Period {
	return PeriodOf(i.DueDate)
}

// Deleted reports whether the invoice was soft-deleted.
func (i Invoice) Deleted() bool {
	return i.DeletedAt != nil
}

// InvoiceInput carries the values for a new invoice row.
type InvoiceInput struct {
	ID        uuid.UUID
	TenantID  int64
	DueDate   time.Time
	CreatedAt time.Time
}

// Period identifies one monthly billing cycle.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf derives the billing period of a due date.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses the YYYY-MM form.
func ParsePeriod(value string) (Period, error) {
	t, err := time.Parse("2006-01", value)
	if err != nil {
		return Period{}, fmt.Errorf("%w: period %q must be YYYY-MM", ErrValidation, value)
	}
	return PeriodOf(t), nil
}

// String renders the period as YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Previous returns the period one month earlier.
func (p Period) Previous() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Days returns the number of days in the period.
func (p Period) Days() int {
	return time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Bounds returns the first day of the period and the first day of the next one.
func (p Period) Bounds(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// Failure records a tenant the run could not process.
type Failure struct {
	TenantID int64  `json:"tenant_id"`
	Reason   string `json:"reason"`
}

// RunSummary reports the outcome of one generation run.
type RunSummary struct {
	RunID    uuid.UUID     `json:"run_id"`
	RunDate  time.Time     `json:"run_date"`
	Leases   int           `json:"leases"`
	Created  int           `json:"created"`
	Skipped  int           `json:"skipped"`
	NotDue   int           `json:"not_due"`
	Failed   []Failure     `json:"failed"`
	Warnings []Failure     `json:"warnings,omitempty"`
	Duration time.Duration `json:"duration"`
}

// StatusTotals counts the invoices of a period by status.
type StatusTotals struct {
	Pending int `json:"pending"`
	Paid    int `json:"paid"`
	Overdue int `json:"overdue"`
}

// Tally counts invoices by status.
func Tally(invoices []Invoice) StatusTotals {
	var t StatusTotals
	for _, inv := range invoices {
		switch inv.Status {
		case StatusPending:
			t.Pending++
		case StatusPaid:
			t.Paid++
		case StatusOverdue:
			t.Overdue++
		}
	}
	return t
}
