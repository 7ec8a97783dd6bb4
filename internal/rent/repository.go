package rent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/rentroll/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for leases and invoices.
type Repository struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

// NewRepository constructs a repository. Dates are returned in UTC unless
// WithLocation is used.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, loc: time.UTC}
}

// WithLocation sets the zone invoice due dates are returned in.
func (r *Repository) WithLocation(loc *time.Location) *Repository {
	if loc != nil {
		r.loc = loc
	}
	return r
}

const activeLeasesSQL = `
SELECT t.id, t.full_name, t.due_day, t.rent::text, t.is_active,
	u.id, u.unit_name, p.property_name
FROM tenants t
LEFT JOIN units u ON u.id = t.unit_id
LEFT JOIN properties p ON p.id = u.property_id
WHERE t.tenant_type = 'rent' AND t.is_active AND NOT t.is_deleted
ORDER BY t.id`

// ActiveLeases returns active, non-deleted rent tenancies. Missing related
// values are left empty so validation reports them per tenant.
func (r *Repository) ActiveLeases(ctx context.Context) ([]Lease, error) {
	rows, err := r.pool.Query(ctx, activeLeasesSQL)
	if err != nil {
		return nil, storageError("active leases", err)
	}
	defer rows.Close()

	var leases []Lease
	for rows.Next() {
		var (
			l        Lease
			dueDay   pgtype.Int2
			amount   pgtype.Text
			unitID   pgtype.Int8
			unitName pgtype.Text
			property pgtype.Text
		)
		if err := rows.Scan(&l.TenantID, &l.TenantName, &dueDay, &amount, &l.Active, &unitID, &unitName, &property); err != nil {
			return nil, storageError("scan lease", err)
		}
		if dueDay.Valid {
			l.DueDay = int(dueDay.Int16)
		}
		if amount.Valid {
			if l.RentAmount, err = decimal.NewFromString(amount.String); err != nil {
				return nil, storageError("parse rent amount", err)
			}
		}
		l.UnitID = unitID.Int64
		l.UnitName = unitName.String
		l.PropertyName = property.String
		leases = append(leases, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("active leases", err)
	}
	return leases, nil
}

const invoiceColumns = `id, tenant_id, due_date, status, created_at, updated_at, deleted_at`

// InsertIfAbsent inserts a pending invoice guarded by the unique index on
// (tenant_id, due_date). When the key exists the stored invoice is returned.
func (r *Repository) InsertIfAbsent(ctx context.Context, input InvoiceInput) (Invoice, bool, error) {
	row := r.pool.QueryRow(ctx, `
INSERT INTO rent_invoices (id, tenant_id, due_date, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (tenant_id, due_date) DO NOTHING
RETURNING `+invoiceColumns,
		input.ID, input.TenantID, dateOnly(input.DueDate), StatusPending, input.CreatedAt)
	inv, err := r.scanInvoice(row)
	if err == nil {
		return inv, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, false, storageError("insert invoice", err)
	}
	// The conflicting row may belong to a transaction that committed after this
	// statement's snapshot, so the lookup runs as its own statement.
	existing, err := r.FindByTenantDue(ctx, input.TenantID, input.DueDate)
	if err != nil {
		return Invoice{}, false, err
	}
	return existing, false, nil
}

// FindByTenantDue loads the invoice for a tenant and due date, deleted or not.
func (r *Repository) FindByTenantDue(ctx context.Context, tenantID int64, dueDate time.Time) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM rent_invoices WHERE tenant_id = $1 AND due_date = $2`,
		tenantID, dateOnly(dueDate))
	inv, err := r.scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, storageError("find invoice", err)
	}
	return inv, nil
}

// Get loads an invoice by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Invoice, error) {
	inv, err := r.scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM rent_invoices WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, storageError("get invoice", err)
	}
	return inv, nil
}

// ListPeriod returns non-deleted invoices due within period.
func (r *Repository) ListPeriod(ctx context.Context, period Period) ([]Invoice, error) {
	start, end := period.Bounds(time.UTC)
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM rent_invoices
WHERE due_date >= $1 AND due_date < $2 AND deleted_at IS NULL
ORDER BY due_date, tenant_id`, start, end)
	if err != nil {
		return nil, storageError("list invoices", err)
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := r.scanInvoice(rows)
		if err != nil {
			return nil, storageError("scan invoice", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list invoices", err)
	}
	return out, nil
}

// UpdateStatus applies a payment-recording status change.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, target InvoiceStatus) (Invoice, error) {
	var updated Invoice
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := r.scanInvoice(tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM rent_invoices WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := ValidateStatusTransition(current.Status, target); err != nil {
			return err
		}
		updated, err = r.scanInvoice(tx.QueryRow(ctx, `UPDATE rent_invoices SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+invoiceColumns, id, string(target)))
		return err
	}, db.ReadCommitted())
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return Invoice{}, err
		}
		return Invoice{}, storageError("update status", err)
	}
	return updated, nil
}

// SoftDelete marks an invoice deleted and returns it. The row keeps its key so
// the period is never generated again.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) (Invoice, error) {
	inv, err := r.scanInvoice(r.pool.QueryRow(ctx, `UPDATE rent_invoices SET deleted_at = NOW(), updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL RETURNING `+invoiceColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, storageError("soft delete", err)
	}
	return inv, nil
}

func (r *Repository) scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var status string
	if err := row.Scan(&inv.ID, &inv.TenantID, &inv.DueDate, &status, &inv.CreatedAt, &inv.UpdatedAt, &inv.DeletedAt); err != nil {
		return Invoice{}, err
	}
	inv.Status = InvoiceStatus(status)
	inv.DueDate = inLocation(inv.DueDate, r.loc)
	return inv, nil
}

// NotificationRepository persists reminders for the in-app notification feed.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// NotifyRentDue stores the reminder.
func (r *NotificationRepository) NotifyRentDue(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO notifications (tenant_id, title, description, notify_type, created_at) VALUES ($1, $2, $3, $4, NOW())`,
		n.TenantID, n.Title, n.Description, n.NotifyType)
	return err
}

// dateOnly keeps the calendar date of t and drops the zone so DATE columns
// never shift across a UTC boundary.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func inLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
