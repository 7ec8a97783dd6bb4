// Package sqlite is the embedded invoice store used for single-node
// deployments and tests. It enforces the same (tenant, due date) uniqueness as
// the PostgreSQL schema.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/rentroll/internal/rent"
)

//go:embed schema.sql
var schemaSQL string

const (
	dateLayout  = time.DateOnly
	stampLayout = time.RFC3339Nano
)

// Store implements the rent lease source, invoice store, notifier and auditor
// on a single SQLite database.
type Store struct {
	db    *sql.DB
	loc   *time.Location
	clock func() time.Time
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn := "file:" + path + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("rent/sqlite: open: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("rent/sqlite: ping: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("rent/sqlite: schema: %w", err)
	}
	return &Store{db: db, loc: time.UTC, clock: func() time.Time { return time.Now().UTC() }}, nil
}

// WithLocation sets the zone due dates are returned in.
func (s *Store) WithLocation(loc *time.Location) *Store {
	if loc != nil {
		s.loc = loc
	}
	return s
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the handle for seeding and inspection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ActiveLeases returns active, non-deleted rent tenancies.
func (s *Store) ActiveLeases(ctx context.Context) ([]rent.Lease, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT t.id, t.full_name, t.due_day, t.rent, t.is_active, u.id, u.unit_name, p.property_name
FROM tenants t
LEFT JOIN units u ON u.id = t.unit_id
LEFT JOIN properties p ON p.id = u.property_id
WHERE t.tenant_type = 'rent' AND t.is_active = 1 AND t.is_deleted = 0
ORDER BY t.id`)
	if err != nil {
		return nil, classify("active leases", err)
	}
	defer rows.Close()

	var leases []rent.Lease
	for rows.Next() {
		var (
			l        rent.Lease
			dueDay   sql.NullInt64
			amount   sql.NullString
			unitID   sql.NullInt64
			unitName sql.NullString
			property sql.NullString
		)
		if err := rows.Scan(&l.TenantID, &l.TenantName, &dueDay, &amount, &l.Active, &unitID, &unitName, &property); err != nil {
			return nil, classify("scan lease", err)
		}
		l.DueDay = int(dueDay.Int64)
		if amount.Valid {
			if l.RentAmount, err = decimal.NewFromString(amount.String); err != nil {
				return nil, classify("parse rent amount", err)
			}
		}
		l.UnitID = unitID.Int64
		l.UnitName = unitName.String
		l.PropertyName = property.String
		leases = append(leases, l)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("active leases", err)
	}
	return leases, nil
}

const invoiceColumns = `id, tenant_id, due_date, status, created_at, updated_at, deleted_at`

// InsertIfAbsent inserts a pending invoice unless the (tenant, due date) key exists.
func (s *Store) InsertIfAbsent(ctx context.Context, input rent.InvoiceInput) (rent.Invoice, bool, error) {
	stamp := input.CreatedAt.UTC().Format(stampLayout)
	row := s.db.QueryRowContext(ctx, `
INSERT INTO rent_invoices (id, tenant_id, due_date, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (tenant_id, due_date) DO NOTHING
RETURNING `+invoiceColumns,
		input.ID.String(), input.TenantID, input.DueDate.Format(dateLayout), string(rent.StatusPending), stamp, stamp)
	inv, err := s.scanInvoice(row)
	if err == nil {
		return inv, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return rent.Invoice{}, false, classify("insert invoice", err)
	}
	existing, err := s.FindByTenantDue(ctx, input.TenantID, input.DueDate)
	if err != nil {
		return rent.Invoice{}, false, err
	}
	return existing, false, nil
}

// FindByTenantDue loads the invoice for a tenant and due date, deleted or not.
func (s *Store) FindByTenantDue(ctx context.Context, tenantID int64, dueDate time.Time) (rent.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM rent_invoices WHERE tenant_id = ? AND due_date = ?`,
		tenantID, dueDate.Format(dateLayout))
	return s.one("find invoice", row)
}

// Get loads an invoice by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (rent.Invoice, error) {
	return s.one("get invoice", s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM rent_invoices WHERE id = ?`, id.String()))
}

// ListPeriod returns non-deleted invoices due within period.
func (s *Store) ListPeriod(ctx context.Context, period rent.Period) ([]rent.Invoice, error) {
	start, end := period.Bounds(time.UTC)
	rows, err := s.db.QueryContext(ctx, `SELECT `+invoiceColumns+` FROM rent_invoices
WHERE due_date >= ? AND due_date < ? AND deleted_at IS NULL
ORDER BY due_date, tenant_id`, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, classify("list invoices", err)
	}
	defer rows.Close()
	var out []rent.Invoice
	for rows.Next() {
		inv, err := s.scanInvoice(rows)
		if err != nil {
			return nil, classify("scan invoice", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list invoices", err)
	}
	return out, nil
}

// UpdateStatus applies a payment-recording status change.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, target rent.InvoiceStatus) (rent.Invoice, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rent.Invoice{}, classify("begin tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	current, err := s.one("get invoice", tx.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM rent_invoices WHERE id = ? AND deleted_at IS NULL`, id.String()))
	if err != nil {
		return rent.Invoice{}, err
	}
	if err := rent.ValidateStatusTransition(current.Status, target); err != nil {
		return rent.Invoice{}, err
	}
	updated, err := s.one("update status", tx.QueryRowContext(ctx, `UPDATE rent_invoices SET status = ?, updated_at = ? WHERE id = ? RETURNING `+invoiceColumns,
		string(target), s.clock().Format(stampLayout), id.String()))
	if err != nil {
		return rent.Invoice{}, err
	}
	if err := tx.Commit(); err != nil {
		return rent.Invoice{}, classify("commit", err)
	}
	return updated, nil
}

// SoftDelete marks an invoice deleted while keeping its key and returns the
// deleted row.
func (s *Store) SoftDelete(ctx context.Context, id uuid.UUID) (rent.Invoice, error) {
	now := s.clock().Format(stampLayout)
	return s.one("soft delete", s.db.QueryRowContext(ctx, `UPDATE rent_invoices SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL RETURNING `+invoiceColumns,
		now, now, id.String()))
}

// NotifyRentDue stores the reminder in the notification feed.
func (s *Store) NotifyRentDue(ctx context.Context, n rent.Notification) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO notifications (tenant_id, title, description, notify_type, created_at) VALUES (?, ?, ?, ?, ?)`,
		n.TenantID, n.Title, n.Description, n.NotifyType, s.clock().Format(stampLayout))
	return err
}

// RecordRent stores the activity log entry.
func (s *Store) RecordRent(ctx context.Context, e rent.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO audit_logs (action, entity, entity_id, title, details, tenant_id, occurred_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Action, e.EntityType, e.InvoiceID, e.Title, e.Description, e.TenantID, s.clock().Format(stampLayout))
	return err
}

func (s *Store) one(op string, row *sql.Row) (rent.Invoice, error) {
	inv, err := s.scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rent.Invoice{}, rent.ErrNotFound
	}
	if err != nil {
		return rent.Invoice{}, classify(op, err)
	}
	return inv, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanInvoice(row scanner) (rent.Invoice, error) {
	var (
		inv                           rent.Invoice
		id, due, status, created, upd string
		deleted                       sql.NullString
	)
	if err := row.Scan(&id, &inv.TenantID, &due, &status, &created, &upd, &deleted); err != nil {
		return rent.Invoice{}, err
	}
	var err error
	if inv.ID, err = uuid.Parse(id); err != nil {
		return rent.Invoice{}, err
	}
	if inv.DueDate, err = time.ParseInLocation(dateLayout, due, s.loc); err != nil {
		return rent.Invoice{}, err
	}
	if inv.CreatedAt, err = time.Parse(stampLayout, created); err != nil {
		return rent.Invoice{}, err
	}
	if inv.UpdatedAt, err = time.Parse(stampLayout, upd); err != nil {
		return rent.Invoice{}, err
	}
	if deleted.Valid {
		at, err := time.Parse(stampLayout, deleted.String)
		if err != nil {
			return rent.Invoice{}, err
		}
		inv.DeletedAt = &at
	}
	inv.Status = rent.InvoiceStatus(status)
	return inv, nil
}

// classify keeps row-level constraint failures per tenant and treats
// everything else as the store being unavailable.
func classify(op string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("rent/sqlite: %s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", rent.ErrStorage, op, err)
}
