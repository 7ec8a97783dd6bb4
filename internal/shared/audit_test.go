package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuditLogValidate(t *testing.T) {
	require.Error(t, AuditLog{Action: "Create", Entity: "rent"}.Validate())
	require.Error(t, AuditLog{Entity: "rent", EntityID: "1"}.Validate())
	require.NoError(t, AuditLog{Action: "Create", Entity: "rent", EntityID: "inv-1"}.Validate())
}

func TestAuditLoggerWithoutPool(t *testing.T) {
	var nilLogger *AuditLogger
	require.Error(t, nilLogger.Record(context.Background(), AuditLog{Action: "Create", Entity: "rent", EntityID: "1"}))
	require.Error(t, NewAuditLogger(nil).Record(context.Background(), AuditLog{Action: "Create", Entity: "rent", EntityID: "1"}))
}
