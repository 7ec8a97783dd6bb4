package rent

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/rentroll/internal/shared"
)

// NotifyChannel is the Redis channel the notification service listens on.
const NotifyChannel = "rent.notify"

// RedisNotifier publishes reminders on a Redis channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier constructs the publisher. An empty channel uses NotifyChannel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = NotifyChannel
	}
	return &RedisNotifier{client: client, channel: channel}
}

// NotifyRentDue publishes the reminder as JSON.
func (n *RedisNotifier) NotifyRentDue(ctx context.Context, msg Notification) error {
	if n == nil || n.client == nil {
		return errors.New("rent: redis notifier not configured")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

type fanoutNotifier []Notifier

// Notifiers delivers every reminder to all non-nil notifiers and joins their errors.
func Notifiers(ns ...Notifier) Notifier {
	out := make(fanoutNotifier, 0, len(ns))
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (f fanoutNotifier) NotifyRentDue(ctx context.Context, msg Notification) error {
	var errs []error
	for _, n := range f {
		if err := n.NotifyRentDue(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AuditTrail writes rent activity through the shared audit logger.
type AuditTrail struct {
	logger *shared.AuditLogger
}

// NewAuditTrail wraps an audit logger.
func NewAuditTrail(logger *shared.AuditLogger) *AuditTrail {
	return &AuditTrail{logger: logger}
}

// RecordRent stores the entry in audit_logs.
func (a *AuditTrail) RecordRent(ctx context.Context, entry AuditEntry) error {
	if a == nil {
		return errors.New("rent: audit trail not configured")
	}
	return a.logger.Record(ctx, shared.AuditLog{
		Action:   entry.Action,
		Entity:   entry.EntityType,
		EntityID: entry.InvoiceID,
		Title:    entry.Title,
		Details:  entry.Description,
		Meta: map[string]any{
			"tenant_id": strconv.FormatInt(entry.TenantID, 10),
		},
	})
}
