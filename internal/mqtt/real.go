package mqtt

import (
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// bufferCapacity bounds how many events are held while disconnected.
const bufferCapacity = 64

// commandBacklog bounds how many unprocessed commands are queued for the
// run loop before new ones are dropped.
const commandBacklog = 16

// RealClient publishes to and receives commands from an actual MQTT broker.
// Events published while the broker is unreachable are buffered and
// replayed after reconnection.
type RealClient struct {
	client   paho.Client
	buffer   *ringBuffer
	commands chan Command
}

// NewRealClient creates a client connected to the given broker and
// subscribed to the command topic.
func NewRealClient(broker string) (*RealClient, error) {
	c := &RealClient{
		buffer:   newRingBuffer(bufferCapacity),
		commands: make(chan Command, commandBacklog),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("boiler-relay").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(c.onConnect)

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return c, nil
}

// onConnect runs on every (re)connect: re-establish the command
// subscription and replay anything buffered while disconnected.
func (c *RealClient) onConnect(client paho.Client) {
	token := client.Subscribe(TopicCommand, 1, c.onCommand)
	if !token.WaitTimeout(5 * time.Second) {
		log.Printf("mqtt: subscribe timeout on %s", TopicCommand)
	} else if err := token.Error(); err != nil {
		log.Printf("mqtt: subscribe %s: %v", TopicCommand, err)
	}

	for _, msg := range c.buffer.drainAll() {
		token := client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if !token.WaitTimeout(5 * time.Second) {
			log.Printf("mqtt: replay timeout on %s", msg.topic)
			continue
		}
		if err := token.Error(); err != nil {
			log.Printf("mqtt: replay %s: %v", msg.topic, err)
		}
	}
}

// onCommand parses an incoming command and queues it for the run loop.
func (c *RealClient) onCommand(_ paho.Client, msg paho.Message) {
	cmd, err := ParseCommand(msg.Payload())
	if err != nil {
		log.Printf("mqtt: ignoring command: %v", err)
		return
	}

	select {
	case c.commands <- cmd:
	default:
		log.Printf("mqtt: command backlog full, dropping %s", cmd)
	}
}

// Commands returns the channel commands are delivered on.
func (c *RealClient) Commands() <-chan Command {
	return c.commands
}

// IsConnected reports whether the connection to the broker is open.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// publish sends a message, buffering it if the broker is unreachable.
func (c *RealClient) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		c.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		return nil
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Publish sends a relay event to the MQTT broker.
func (c *RealClient) Publish(event Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return c.publish(TopicEvents, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return c.publish(TopicSystem, 1, event.Retained, payload)
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
