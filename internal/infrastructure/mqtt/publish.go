package mqtt

import (
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20 // 1MB

// validatePublish checks the arguments shared by Publish and PublishAsync.
func (c *Client) validatePublish(topic string, payload []byte, qos byte) error {
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
	return nil
}

// Publish sends a message and waits for the broker acknowledgment.
//
// QoS Levels:
//   - 0: At most once (fire and forget)
//   - 1: At least once (guaranteed delivery, may duplicate)
//   - 2: Exactly once (guaranteed, no duplicates, higher overhead)
//
// Example:
//
//	topic := mqtt.NewTopics("ac").Command("daikin", "esp01")
//	err := client.Publish(topic, []byte(`{"command":"ON"}`), 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := c.validatePublish(topic, payload, qos); err != nil {
		return err
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

// PublishAsync hands a message to the transport and returns immediately.
//
// done, if non-nil, is invoked exactly once from another goroutine with the
// outcome (nil on acknowledgment). It is meant for logging, not flow control.
// Validation failures are reported through done as well.
func (c *Client) PublishAsync(topic string, payload []byte, qos byte, retained bool, done func(error)) {
	if done == nil {
		done = func(error) {}
	}

	if err := c.validatePublish(topic, payload, qos); err != nil {
		go done(err)
		return
	}

	token := c.client.Publish(topic, qos, retained, payload)
	go func() {
		if !token.WaitTimeout(defaultPublishTimeout) {
			done(fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout))
			return
		}
		if err := token.Error(); err != nil {
			done(fmt.Errorf("%w: %w", ErrPublishFailed, err))
			return
		}
		done(nil)
	}()
}
