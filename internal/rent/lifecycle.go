package rent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// InvoiceLifecycle applies the transitions that happen after generation:
// payment recording and soft deletion.
type InvoiceLifecycle interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, target InvoiceStatus) (Invoice, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (Invoice, error)
}

// ChangeResult describes an applied lifecycle change.
type ChangeResult struct {
	Invoice  Invoice
	Warnings []error
}

// Lifecycle records status changes and deletions and writes their audit trail.
type Lifecycle struct {
	store       InvoiceLifecycle
	auditor     Auditor
	logger      *slog.Logger
	emitTimeout time.Duration
}

// NewLifecycle builds a Lifecycle. The auditor is optional.
func NewLifecycle(store InvoiceLifecycle, auditor Auditor, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{store: store, auditor: auditor, logger: logger, emitTimeout: 10 * time.Second}
}

// MarkStatus moves an invoice to status, e.g. paid once the tenant has paid.
func (l *Lifecycle) MarkStatus(ctx context.Context, id uuid.UUID, status string) (ChangeResult, error) {
	if l == nil || l.store == nil {
		return ChangeResult{}, errors.New("rent: lifecycle not configured")
	}
	target, err := ParseStatus(status)
	if err != nil {
		return ChangeResult{}, err
	}
	inv, err := l.store.UpdateStatus(ctx, id, target)
	if err != nil {
		return ChangeResult{}, err
	}
	result := ChangeResult{Invoice: inv}
	result.Warnings = l.audit(ctx, AuditEntry{
		Action:      auditActionUpdate,
		EntityType:  auditEntityRent,
		TenantID:    inv.TenantID,
		InvoiceID:   inv.ID.String(),
		Title:       "Rent status is updated",
		Description: fmt.Sprintf("rent due %s marked %s", inv.DueDate.Format("Mon Jan 02 2006"), inv.Status),
	})
	return result, nil
}

// Delete soft-deletes an invoice. Its period is never generated again.
func (l *Lifecycle) Delete(ctx context.Context, id uuid.UUID) (ChangeResult, error) {
	if l == nil || l.store == nil {
		return ChangeResult{}, errors.New("rent: lifecycle not configured")
	}
	inv, err := l.store.SoftDelete(ctx, id)
	if err != nil {
		return ChangeResult{}, err
	}
	result := ChangeResult{Invoice: inv}
	result.Warnings = l.audit(ctx, AuditEntry{
		Action:      auditActionDelete,
		EntityType:  auditEntityRent,
		TenantID:    inv.TenantID,
		InvoiceID:   inv.ID.String(),
		Title:       "Rent is deleted",
		Description: fmt.Sprintf("rent due %s (%s) deleted", inv.DueDate.Format("Mon Jan 02 2006"), inv.Status),
	})
	return result, nil
}

func (l *Lifecycle) audit(ctx context.Context, entry AuditEntry) []error {
	if l.auditor == nil {
		return nil
	}
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.emitTimeout)
	defer cancel()
	if err := l.auditor.RecordRent(auditCtx, entry); err != nil {
		logger := l.logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("rent audit failed",
			slog.String("action", entry.Action),
			slog.String("invoice_id", entry.InvoiceID),
			slog.Any("error", err),
		)
		return []error{fmt.Errorf("rent: audit: %w", err)}
	}
	return nil
}
