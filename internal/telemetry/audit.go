package telemetry

import (
	"context"
	"log"
	"time"
)

// Audit levels.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Session actions recorded by the token authority.
const (
	ActionLogin         = "login"
	ActionLoginFailed   = "login_failed"
	ActionRefreshFailed = "refresh_failed"
	ActionLogout        = "logout"
	ActionAuditTest     = "audit_test"
)

const (
	auditEventType     = "session_audit"
	auditSchemaVersion = 2
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEmitter publishes session lifecycle records (login, logout, refresh failures).
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	deviceID    string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	DeviceID      string       `json:"device_id,omitempty"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string `json:"level"`
	Action string `json:"action"`
	Text   string `json:"text"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment, deviceID string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		deviceID:    deviceID,
	}
}

// Emit publishes one audit record. A nil emitter is valid and does nothing.
func (e *AuditEmitter) Emit(ctx context.Context, level, action, text string, userID *string) {
	if e == nil || e.publisher == nil {
		return
	}

	log.Printf("audit emit: level=%s action=%s user_id=%v text=%q", level, action, derefOrEmpty(userID), text)
	envelope := AuditEnvelope{
		SchemaVersion: auditSchemaVersion,
		EventType:     auditEventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		DeviceID:      e.deviceID,
		UserID:        userID,
		Payload: AuditPayload{
			Level:  level,
			Action: action,
			Text:   text,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
