package observability

import "context"

// Publisher delivers JSON events to a broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

// HeaderedEvent carries broker headers alongside the envelope.
type HeaderedEvent struct {
	EventEnvelope
	Headers map[string]string `json:"-"`
}

var defaultPublisher Publisher

func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent sends envelope through the configured publisher. Without one it is a no-op.
func PublishEvent(ctx context.Context, routingKey string, envelope EventEnvelope, headers map[string]string) error {
	if defaultPublisher == nil {
		return nil
	}

	err := defaultPublisher.Publish(ctx, routingKey, HeaderedEvent{EventEnvelope: envelope, Headers: headers})
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}
