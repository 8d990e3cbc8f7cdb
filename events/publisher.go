// Package events publishes fleet events (node connectivity, reconciliation,
// deployment pushes) on a message stream for external consumers. Delivery is
// best-effort: events stage through a local durable outbox and nothing in the
// server depends on a publish succeeding.
package events

import (
	"context"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/segmentio/kafka-go"

	"visionlink/config"
)

// Publisher is one messaging backend. Implementations must be safe for
// concurrent use by the drainer and health checks.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Connected() bool
	Close() error
}

// NewPublisher selects the backend from config: kafka, mqtt or none.
func NewPublisher(cfg *config.EventsConfig) (Publisher, error) {
	switch cfg.Backend {
	case "kafka":
		return newKafkaPublisher(cfg), nil
	case "mqtt":
		return newMQTTPublisher(cfg)
	case "none":
		return noopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unsupported events backend: %s", cfg.Backend)
	}
}

// Noop returns a publisher that accepts and discards everything.
func Noop() Publisher { return noopPublisher{} }

type kafkaPublisher struct {
	writer *kafka.Writer
}

func newKafkaPublisher(cfg *config.EventsConfig) *kafkaPublisher {
	return &kafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (p *kafkaPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Value: payload})
}

func (p *kafkaPublisher) Connected() bool { return true }

func (p *kafkaPublisher) Close() error { return p.writer.Close() }

type mqttPublisher struct {
	client mqtt.Client
}

func newMQTTPublisher(cfg *config.EventsConfig) (*mqttPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		// Auto-reconnect keeps trying in the background; the outbox holds
		// events until the broker comes up.
		log.Printf("events: mqtt broker %s not reachable yet: %v", cfg.BrokerURL, token.Error())
	}
	return &mqttPublisher{client: client}, nil
}

func (p *mqttPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	token := p.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt publish timeout")
	}
	return token.Error()
}

func (p *mqttPublisher) Connected() bool { return p.client.IsConnected() }

func (p *mqttPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (noopPublisher) Connected() bool                               { return false }
func (noopPublisher) Close() error                                  { return nil }
