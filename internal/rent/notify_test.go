package rent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisNotifierPublishesReminder(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	sub := client.Subscribe(ctx, NotifyChannel)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	msg := Notification{Title: "Rent Due Reminder November 2024", NotifyType: "rent", TenantID: 9, InvoiceID: "inv-1"}
	require.NoError(t, NewRedisNotifier(client, "").NotifyRentDue(ctx, msg))

	select {
	case got := <-sub.Channel():
		var decoded Notification
		require.NoError(t, json.Unmarshal([]byte(got.Payload), &decoded))
		require.Equal(t, msg, decoded)
	case <-time.After(2 * time.Second):
		t.Fatal("reminder not published")
	}
}

func TestRedisNotifierReportsUnavailableServer(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	err := NewRedisNotifier(client, "custom").NotifyRentDue(context.Background(), Notification{})
	require.Error(t, err)
}

func TestNotifiersFanOutAndJoinErrors(t *testing.T) {
	ok := &recordingNotifier{}
	failing := &recordingNotifier{err: errors.New("queue full")}
	fan := Notifiers(ok, nil, failing)

	err := fan.NotifyRentDue(context.Background(), Notification{TenantID: 3})
	require.ErrorContains(t, err, "queue full")
	require.Len(t, ok.sent, 1)
	require.Len(t, failing.sent, 1)

	require.NoError(t, Notifiers().NotifyRentDue(context.Background(), Notification{}))
}

func TestAuditTrailRequiresLogger(t *testing.T) {
	var trail *AuditTrail
	require.Error(t, trail.RecordRent(context.Background(), AuditEntry{}))
}
