package rent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// LeaseSource supplies the active rent leases for one run.
type LeaseSource interface {
	ActiveLeases(ctx context.Context) ([]Lease, error)
}

// InvoiceStore persists invoices. InsertIfAbsent must be a single atomic
// conditional write keyed on (tenant, due date): it returns the new invoice and
// true, or the existing invoice and false.
type InvoiceStore interface {
	InsertIfAbsent(ctx context.Context, input InvoiceInput) (Invoice, bool, error)
}

// Notifier delivers tenant reminders.
type Notifier interface {
	NotifyRentDue(ctx context.Context, n Notification) error
}

// Auditor records activity log entries.
type Auditor interface {
	RecordRent(ctx context.Context, entry AuditEntry) error
}

// CreateResult describes the outcome of CreateIfAbsent.
type CreateResult struct {
	Created bool
	Invoice Invoice
	// Warnings holds notification or audit failures. They never undo the invoice.
	Warnings []error
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store       InvoiceStore
	Notifier    Notifier
	Auditor     Auditor
	Formatter   *Formatter
	Logger      *slog.Logger
	EmitTimeout time.Duration
}

// Service creates rent invoices at most once per tenant and due date.
type Service struct {
	store       InvoiceStore
	notifier    Notifier
	auditor     Auditor
	formatter   *Formatter
	logger      *slog.Logger
	emitTimeout time.Duration
	clock       func() time.Time
	newID       func() uuid.UUID
}

// NewService builds a Service. Notifier and Auditor are optional.
func NewService(cfg ServiceConfig) *Service {
	formatter := cfg.Formatter
	if formatter == nil {
		formatter = NewFormatter("", "")
	}
	timeout := cfg.EmitTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		store:       cfg.Store,
		notifier:    cfg.Notifier,
		auditor:     cfg.Auditor,
		formatter:   formatter,
		logger:      cfg.Logger,
		emitTimeout: timeout,
		clock: func() time.Time {
			return time.Now().UTC()
		},
		newID: uuid.New,
	}
}

// WithClock overrides the creation timestamp source for deterministic tests.
func (s *Service) WithClock(clock func() time.Time) {
	if s != nil && clock != nil {
		s.clock = clock
	}
}

// CreateIfAbsent creates the pending invoice for lease and dueDate unless one
// already exists, soft-deleted or not. Emitters only run for new invoices.
func (s *Service) CreateIfAbsent(ctx context.Context, lease Lease, dueDate time.Time) (CreateResult, error) {
	if s == nil || s.store == nil {
		return CreateResult{}, errors.New("rent: service not configured")
	}
	if lease.TenantID <= 0 {
		return CreateResult{}, fmt.Errorf("%w: tenant id is required", ErrValidation)
	}
	if dueDate.IsZero() {
		return CreateResult{}, fmt.Errorf("%w: due date is required", ErrValidation)
	}
	inv, created, err := s.store.InsertIfAbsent(ctx, InvoiceInput{
		ID:        s.newID(),
		TenantID:  lease.TenantID,
		DueDate:   dueDate,
		CreatedAt: s.clock(),
	})
	if err != nil {
		return CreateResult{}, err
	}
	result := CreateResult{Created: created, Invoice: inv}
	if !created {
		return result, nil
	}
	result.Warnings = s.emit(ctx, lease, inv)
	return result, nil
}

// emit fires the side effects for a persisted invoice. The invoice already
// exists at this point, so emission outlives cancellation of the run.
func (s *Service) emit(ctx context.Context, lease Lease, inv Invoice) []error {
	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.emitTimeout)
	defer cancel()

	var warnings []error
	if s.notifier != nil {
		if err := s.notifier.NotifyRentDue(emitCtx, s.formatter.Notification(lease, inv)); err != nil {
			warnings = append(warnings, fmt.Errorf("rent: notify: %w", err))
		}
	}
	if s.auditor != nil {
		if err := s.auditor.RecordRent(emitCtx, s.formatter.Audit(lease, inv)); err != nil {
			warnings = append(warnings, fmt.Errorf("rent: audit: %w", err))
		}
	}
	for _, w := range warnings {
		s.log().Warn("rent side effect failed",
			slog.Int64("tenant_id", lease.TenantID),
			slog.String("invoice_id", inv.ID.String()),
			slog.Any("error", w),
		)
	}
	return warnings
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
