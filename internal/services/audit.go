// internal/services/audit.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/licensehub/license-server/internal/models"
)

// Audit event names
const (
	EventActivationSuccess     = "ACTIVATION_SUCCESS"
	EventActivationFailed      = "ACTIVATION_FAILED"
	EventValidationCheck       = "VALIDATION_CHECK"
	EventValidationFailed      = "VALIDATION_FAILED"
	EventLicenseCreated        = "LICENSE_CREATED"
	EventLicenseSuspended      = "LICENSE_SUSPENDED"
	EventLicenseReactivated    = "LICENSE_REACTIVATED"
	EventLicenseExtended       = "LICENSE_EXTENDED"
	EventLicenseUpdated        = "LICENSE_UPDATED"
	EventLicenseDeleted        = "LICENSE_DELETED"
	EventDomainUnbound         = "DOMAIN_UNBOUND"
	EventWebhookLicenseCreated = "WEBHOOK_LICENSE_CREATED"
	EventWebhookFailed         = "WEBHOOK_FAILED"
	EventWebhookError          = "WEBHOOK_ERROR"
	EventLoginSuccess          = "LOGIN_SUCCESS"
	EventLoginFailed           = "LOGIN_FAILED"
	EventAdminRequest          = "ADMIN_REQUEST"
)

type AuditEvent struct {
	Event      string
	LicenseKey string
	Domain     string
	Reason     Reason
	Fields     map[string]interface{}
	At         time.Time
}

// AuditSink receives audit events synchronously. Implementations must not
// fail the caller; they log their own errors.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent)
}

type clientIPKey struct{}

// WithClientIP attaches the caller's address so sinks can record it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

type actorKey struct{}

// WithActor attaches the admin username performing a change.
func WithActor(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, actorKey{}, username)
}

func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

// LogrusAuditSink writes one structured log line per event.
type LogrusAuditSink struct {
	logger logrus.FieldLogger
}

func NewLogrusAuditSink(logger logrus.FieldLogger) *LogrusAuditSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogrusAuditSink{logger: logger}
}

func (s *LogrusAuditSink) Record(ctx context.Context, event AuditEvent) {
	fields := logrus.Fields{"event": event.Event}
	if event.LicenseKey != "" {
		fields["license_key"] = event.LicenseKey
	}
	if event.Domain != "" {
		fields["domain"] = event.Domain
	}
	if event.Reason != ReasonNone {
		fields["reason"] = string(event.Reason)
	}
	if ip := ClientIPFromContext(ctx); ip != "" {
		fields["ip"] = ip
	}
	if actor := ActorFromContext(ctx); actor != "" {
		fields["admin"] = actor
	}
	for k, v := range event.Fields {
		fields[k] = v
	}

	entry := s.logger.WithFields(fields)
	if event.Reason != ReasonNone {
		entry.Warn(event.Event)
		return
	}
	entry.Info(event.Event)
}

// DBAuditSink persists events in the audit_logs table for later review.
type DBAuditSink struct {
	db *gorm.DB
}

func NewDBAuditSink(db *gorm.DB) *DBAuditSink {
	return &DBAuditSink{db: db}
}

func (s *DBAuditSink) Record(ctx context.Context, event AuditEvent) {
	entry := &models.AuditLog{
		Event:      event.Event,
		LicenseKey: event.LicenseKey,
		Domain:     event.Domain,
		Reason:     string(event.Reason),
		IPAddress:  ClientIPFromContext(ctx),
	}
	details := models.JSONB{}
	for k, v := range event.Fields {
		details[k] = v
	}
	if actor := ActorFromContext(ctx); actor != "" {
		details["admin"] = actor
	}
	if len(details) > 0 {
		entry.Details = details
	}
	if !event.At.IsZero() {
		entry.CreatedAt = event.At.UTC()
	}

	// the request may already be cancelled; the audit row should still land
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(entry).Error; err != nil {
		logrus.WithError(err).WithField("event", event.Event).Error("Failed to create audit log")
	}
}

// MultiAuditSink fans an event out to every sink in order.
type MultiAuditSink []AuditSink

func (m MultiAuditSink) Record(ctx context.Context, event AuditEvent) {
	for _, sink := range m {
		sink.Record(ctx, event)
	}
}

// MemoryAuditSink keeps events in memory. Tests use it to assert on the audit
// trail.
type MemoryAuditSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (m *MemoryAuditSink) Record(_ context.Context, event AuditEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *MemoryAuditSink) Events() []AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AuditEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Last returns the most recent event, or the zero event when none exists.
func (m *MemoryAuditSink) Last() AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return AuditEvent{}
	}
	return m.events[len(m.events)-1]
}
