package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-client/internal/mocks"
	"chat-client/internal/telemetry"
)

func TestAuditEmitterPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.client", "chat-client", "test", "dev-1")

	var captured telemetry.AuditEnvelope
	publisher.On("Publish", mock.Anything, "audit.client", mock.AnythingOfType("telemetry.AuditEnvelope")).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(telemetry.AuditEnvelope)
		}).
		Return(nil).Once()

	userID := "u1"
	emitter.Emit(context.Background(), telemetry.LevelInfo, "login", "login succeeded", &userID)

	publisher.AssertExpectations(t)
	require.NotNil(t, captured.UserID)
	assert.Equal(t, "u1", *captured.UserID)
	assert.Equal(t, "session_audit", captured.EventType)
	assert.Equal(t, 2, captured.SchemaVersion)
	assert.Equal(t, "login", captured.Payload.Action)
	assert.Equal(t, "dev-1", captured.DeviceID)
}

func TestAuditEmitterPublishErrorIsSwallowed(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.client", "chat-client", "test", "")
	publisher.On("Publish", mock.Anything, "audit.client", mock.Anything).Return(assert.AnError).Once()

	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), telemetry.LevelError, "logout", "revoke failed", nil)
	})
	publisher.AssertExpectations(t)
}

func TestNilAuditEmitterIsNoop(t *testing.T) {
	var emitter *telemetry.AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), telemetry.LevelInfo, "login", "x", nil)
	})
}
