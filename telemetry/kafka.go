package telemetry

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher streams decision events to a Kafka topic for downstream audit
// consumers. One event becomes one JSON message keyed by request_id (or
// intent when no correlation token was supplied). Delivery is asynchronous
// so a slow or unreachable broker never stalls the routing path.
type Publisher struct {
	writer *kafka.Writer
}

// deliveryTimeout bounds a single broker write attempt made by the writer's
// background goroutines.
const deliveryTimeout = 5 * time.Second

// NewPublisher returns a Publisher for the given brokers and topic. The
// writer runs in fire-and-forget mode; delivery failures surface through the
// completion callback and are logged, not returned to the caller.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			Async:        true,
			WriteTimeout: deliveryTimeout,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					log.Printf("telemetry: kafka delivery of %d event(s) failed: %v", len(messages), err)
				}
			},
		},
	}
}

// Record marshals the event and enqueues it for delivery. It returns once
// the message is queued; broker errors are reported by the completion
// callback.
func (p *Publisher) Record(event map[string]any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	key := stringField(event, "request_id")
	if key == "" {
		key = stringField(event, "intent")
	}

	return p.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(key),
		Value: data,
	})
}

// Close flushes queued messages and closes the underlying Kafka writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
