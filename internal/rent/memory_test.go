package rent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type invoiceKey struct {
	tenantID int64
	due      string
}

// memoryStore mirrors the unique index with a mutex-guarded map.
type memoryStore struct {
	mu        sync.Mutex
	leases    []Lease
	leaseErr  error
	insertErr map[int64]error
	invoices  map[invoiceKey]Invoice
	inserts   int
	ignoreCtx bool
}

func newMemoryStore(leases ...Lease) *memoryStore {
	return &memoryStore{
		leases:    leases,
		insertErr: make(map[int64]error),
		invoices:  make(map[invoiceKey]Invoice),
	}
}

func (m *memoryStore) ActiveLeases(ctx context.Context) ([]Lease, error) {
	if m.leaseErr != nil {
		return nil, m.leaseErr
	}
	return append([]Lease(nil), m.leases...), nil
}

func (m *memoryStore) InsertIfAbsent(ctx context.Context, input InvoiceInput) (Invoice, bool, error) {
	if err := ctx.Err(); err != nil && !m.ignoreCtx {
		return Invoice{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insertErr[input.TenantID]; err != nil {
		return Invoice{}, false, err
	}
	key := invoiceKey{tenantID: input.TenantID, due: input.DueDate.Format(time.DateOnly)}
	if existing, ok := m.invoices[key]; ok {
		return existing, false, nil
	}
	inv := Invoice{
		ID:        input.ID,
		TenantID:  input.TenantID,
		DueDate:   input.DueDate,
		Status:    StatusPending,
		CreatedAt: input.CreatedAt,
		UpdatedAt: input.CreatedAt,
	}
	m.invoices[key] = inv
	m.inserts++
	return inv, true, nil
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.invoices)
}

func (m *memoryStore) softDelete(tenantID int64, due time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := invoiceKey{tenantID: tenantID, due: due.Format(time.DateOnly)}
	inv := m.invoices[key]
	now := time.Now()
	inv.DeletedAt = &now
	m.invoices[key] = inv
}

func (m *memoryStore) byID(id uuid.UUID) (invoiceKey, Invoice, bool) {
	for key, inv := range m.invoices {
		if inv.ID == id && inv.DeletedAt == nil {
			return key, inv, true
		}
	}
	return invoiceKey{}, Invoice{}, false
}

func (m *memoryStore) UpdateStatus(ctx context.Context, id uuid.UUID, target InvoiceStatus) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, inv, ok := m.byID(id)
	if !ok {
		return Invoice{}, ErrNotFound
	}
	if err := ValidateStatusTransition(inv.Status, target); err != nil {
		return Invoice{}, err
	}
	inv.Status = target
	m.invoices[key] = inv
	return inv, nil
}

func (m *memoryStore) SoftDelete(ctx context.Context, id uuid.UUID) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, inv, ok := m.byID(id)
	if !ok {
		return Invoice{}, ErrNotFound
	}
	now := time.Now()
	inv.DeletedAt = &now
	m.invoices[key] = inv
	return inv, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	sent    []Notification
	ctxErrs []error
	err     error
}

func (r *recordingNotifier) NotifyRentDue(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return r.err
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (r *recordingAuditor) RecordRent(ctx context.Context, e AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return r.err
}

func testLease(tenantID int64, dueDay int) Lease {
	return Lease{
		TenantID:     tenantID,
		TenantName:   fmt.Sprintf("Tenant %d", tenantID),
		DueDay:       dueDay,
		RentAmount:   decimal.NewFromInt(12000),
		Active:       true,
		UnitID:       tenantID + 100,
		UnitName:     fmt.Sprintf("Unit %d", tenantID),
		PropertyName: "Green Park",
	}
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
