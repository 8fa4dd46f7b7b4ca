// internal/services/audit_test.go
package services

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licensehub/license-server/internal/models"
	"github.com/licensehub/license-server/internal/testutil"
)

func TestLogrusAuditSink(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := NewLogrusAuditSink(logger)
	ctx := WithActor(WithClientIP(context.Background(), "10.0.0.1"), "root")

	sink.Record(ctx, AuditEvent{Event: EventActivationSuccess, LicenseKey: "KEY", Domain: "a.com"})
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, EventActivationSuccess, entry.Message)
	assert.Equal(t, "KEY", entry.Data["license_key"])
	assert.Equal(t, "10.0.0.1", entry.Data["ip"])
	assert.Equal(t, "root", entry.Data["admin"])

	sink.Record(context.Background(), AuditEvent{Event: EventActivationFailed, Reason: ReasonSuspended})
	entry = hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "suspended", entry.Data["reason"])
	assert.NotContains(t, entry.Data, "ip")
}

func TestDBAuditSink(t *testing.T) {
	db := testutil.NewTestDB(t)
	sink := NewDBAuditSink(db)
	ctx := WithActor(WithClientIP(context.Background(), "10.0.0.1"), "root")

	sink.Record(ctx, AuditEvent{
		Event:      EventLicenseExtended,
		LicenseKey: "KEY",
		Fields:     map[string]interface{}{"expire_at": "2031-01-01"},
		At:         testNow,
	})

	var logs []models.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, EventLicenseExtended, logs[0].Event)
	assert.Equal(t, "KEY", logs[0].LicenseKey)
	assert.Equal(t, "10.0.0.1", logs[0].IPAddress)
	assert.Equal(t, "root", logs[0].Details["admin"])
	assert.Equal(t, "2031-01-01", logs[0].Details["expire_at"])
	assert.True(t, testNow.Equal(logs[0].CreatedAt))
}

func TestDBAuditSinkSurvivesCancelledRequest(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewDBAuditSink(db).Record(ctx, AuditEvent{Event: EventValidationCheck})

	var count int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMultiAuditSinkFansOut(t *testing.T) {
	first, second := &MemoryAuditSink{}, &MemoryAuditSink{}
	MultiAuditSink{first, second}.Record(context.Background(), AuditEvent{Event: EventLoginSuccess})

	assert.Len(t, first.Events(), 1)
	assert.Equal(t, EventLoginSuccess, second.Last().Event)
}

func TestMemoryAuditSinkEmpty(t *testing.T) {
	sink := &MemoryAuditSink{}
	assert.Empty(t, sink.Events())
	assert.Equal(t, AuditEvent{}, sink.Last())
}
