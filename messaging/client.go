package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"doseedge/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	kafkago "github.com/segmentio/kafka-go"
)

// Client publishes workstation reports to the plant broker, MQTT or Kafka
// per config. The dosing edge is publish-only: operator commands arrive
// over HTTP and backend pushes over the event socket, so there is no
// inbound broker path here.
type Client struct {
	mu    sync.RWMutex
	cfg   *config.MessagingConfig
	mqtt  mqtt.Client
	kafka *kafkago.Writer
}

// NewClient creates an unconnected client; Connect brings up the link.
func NewClient(cfg *config.MessagingConfig) *Client {
	return &Client{cfg: cfg}
}

// Connect establishes the configured broker connection.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.cfg.Backend {
	case "mqtt":
		addr := fmt.Sprintf("tcp://%s:%d", c.cfg.MQTT.Broker, c.cfg.MQTT.Port)
		opts := mqtt.NewClientOptions().
			AddBroker(addr).
			SetClientID(c.cfg.MQTT.ClientID).
			SetAutoReconnect(true).
			SetConnectRetry(true).
			SetConnectRetryInterval(5 * time.Second)
		conn := mqtt.NewClient(opts)
		if token := conn.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("mqtt connect: %w", token.Error())
		}
		c.mqtt = conn
		return nil
	case "kafka":
		c.kafka = &kafkago.Writer{
			Addr:         kafkago.TCP(c.cfg.Kafka.Brokers...),
			Balancer:     &kafkago.LeastBytes{},
			RequiredAcks: kafkago.RequireOne,
		}
		return nil
	default:
		return fmt.Errorf("unknown messaging backend %q", c.cfg.Backend)
	}
}

// Publish sends one encoded report to the given topic.
func (c *Client) Publish(topic string, payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.mqtt != nil:
		if !c.mqtt.IsConnected() {
			return fmt.Errorf("mqtt not connected")
		}
		token := c.mqtt.Publish(topic, 1, false, payload)
		token.Wait()
		return token.Error()
	case c.kafka != nil:
		return c.kafka.WriteMessages(context.Background(), kafkago.Message{
			Topic: topic,
			Value: payload,
		})
	default:
		return fmt.Errorf("messaging not connected")
	}
}

// PublishEnvelope encodes and publishes an envelope.
func (c *Client) PublishEnvelope(topic string, env Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return c.Publish(topic, data)
}

// IsConnected reports whether reports can currently be published.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.mqtt != nil {
		return c.mqtt.IsConnected()
	}
	return c.kafka != nil
}

// Close tears down the broker connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mqtt != nil {
		c.mqtt.Disconnect(1000)
		c.mqtt = nil
	}
	if c.kafka != nil {
		c.kafka.Close()
		c.kafka = nil
	}
}
