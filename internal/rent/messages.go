package rent

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Notification is the reminder sent to the notification service when an
// invoice is created.
type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	NotifyType  string `json:"notify_type"`
	TenantID    int64  `json:"tenant_id"`
	InvoiceID   string `json:"invoice_id"`
}

// AuditEntry is the activity log record written when an invoice is created.
type AuditEntry struct {
	Action      string
	EntityType  string
	TenantID    int64
	InvoiceID   string
	Title       string
	Description string
}

const (
	notifyTypeRent    = "rent"
	auditActionNew    = "Create"
	auditActionUpdate = "Update"
	auditActionDelete = "Delete"
	auditEntityRent   = "rent"
)

// Formatter renders the human readable reminder and audit texts.
type Formatter struct {
	printer  *message.Printer
	currency string
}

// NewFormatter builds a formatter for the currency symbol and BCP 47 locale.
// Both default to Indian rupees and en-IN digit grouping.
func NewFormatter(currency, locale string) *Formatter {
	if currency == "" {
		currency = "₹"
	}
	tag, err := language.Parse(locale)
	if err != nil || locale == "" {
		tag = language.MustParse("en-IN")
	}
	return &Formatter{printer: message.NewPrinter(tag), currency: currency}
}

func (f *Formatter) amount(l Lease) string {
	if l.RentAmount.Equal(l.RentAmount.Truncate(0)) {
		return f.currency + f.printer.Sprintf("%d", l.RentAmount.IntPart())
	}
	value, _ := l.RentAmount.Round(2).Float64()
	return f.currency + f.printer.Sprintf("%.2f", value)
}

func (f *Formatter) unit(l Lease) string {
	if l.PropertyName == "" {
		return l.UnitName
	}
	return fmt.Sprintf("%s (%s)", l.UnitName, l.PropertyName)
}

// Notification renders the tenant reminder for a freshly created invoice.
func (f *Formatter) Notification(l Lease, inv Invoice) Notification {
	due := inv.DueDate.Format("Mon Jan 02 2006")
	return Notification{
		Title: fmt.Sprintf("Rent Due Reminder %s", inv.DueDate.Format("January 2006")),
		Description: fmt.Sprintf("%s, your rent amount of %s for %s is due on %s. Please make the payment on time to avoid penalties.",
			l.TenantName, f.amount(l), f.unit(l), due),
		NotifyType: notifyTypeRent,
		TenantID:   l.TenantID,
		InvoiceID:  inv.ID.String(),
	}
}

// Audit renders the activity log entry for a freshly created invoice.
func (f *Formatter) Audit(l Lease, inv Invoice) AuditEntry {
	return AuditEntry{
		Action:      auditActionNew,
		EntityType:  auditEntityRent,
		TenantID:    l.TenantID,
		InvoiceID:   inv.ID.String(),
		Title:       "Rent payment due is created",
		Description: fmt.Sprintf("%s %s has rent due %s (%s)", l.TenantName, l.UnitName, inv.DueDate.Format("Mon Jan 02 2006"), f.amount(l)),
	}
}
