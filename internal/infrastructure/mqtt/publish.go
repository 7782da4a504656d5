package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// maxPayloadSize bounds a single message payload (1MB), aligning with
// typical broker limits.
const maxPayloadSize = 1 << 20

// Publish sends a message to the specified topic.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// Event is the JSON envelope published to event topics.
type Event struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	TaskID    string `json:"task_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"`
}

// PublishEvent relays one session event to its kind topic using the
// configured QoS. Events are not retained.
func (c *Client) PublishEvent(sessionID, kind, taskID, detail string) error {
	payload, err := json.Marshal(Event{
		SessionID: sessionID,
		Kind:      kind,
		TaskID:    taskID,
		Detail:    detail,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("%w: encoding event: %w", ErrPublishFailed, err)
	}

	return c.Publish(EventTopic(kind), payload, byte(c.cfg.QoS), false)
}
