// Package events publishes workflow outcomes (registrations, login attempts)
// to an MQTT broker so home automation and audit tools can react to them.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/kozaktomas/faceauth/internal/config"
	log "github.com/sirupsen/logrus"
)

// NewClientFunc creates the underlying MQTT client. Tests replace it.
var NewClientFunc = mqtt.NewClient

const publishTimeout = 5 * time.Second

// Outcome is the payload published when a workflow reaches a result.
type Outcome struct {
	FlowID    string    `json:"flow_id"`
	Workflow  string    `json:"workflow"`
	Result    string    `json:"result"`
	Username  string    `json:"username,omitempty"`
	Distance  *float64  `json:"distance,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers outcomes.
type Publisher interface {
	Publish(ctx context.Context, outcome Outcome) error
	Close()
}

// NoopPublisher drops every outcome.
type NoopPublisher struct{}

// Publish does nothing.
func (NoopPublisher) Publish(ctx context.Context, outcome Outcome) error { return nil }

// Close does nothing.
func (NoopPublisher) Close() {}

// MQTTPublisher publishes outcomes to <prefix>/<workflow>.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string

	mu        sync.RWMutex
	connected bool
}

// NewPublisher returns an MQTT publisher when a broker is configured and a
// no-op publisher otherwise.
func NewPublisher(cfg config.MQTTConfig) (Publisher, error) {
	if !cfg.Enabled() {
		log.Info("MQTT broker not configured, outcome events disabled")
		return NoopPublisher{}, nil
	}
	return NewMQTTPublisher(cfg)
}

// NewMQTTPublisher connects to the configured broker.
func NewMQTTPublisher(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	p := &MQTTPublisher{prefix: cfg.TopicPrefix}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetConnectionLostHandler(p.connectionLostHandler)
	opts.SetOnConnectHandler(p.onConnectHandler)

	p.client = NewClientFunc(opts)

	log.Infof("Connecting to MQTT broker: %s", cfg.Broker)
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", cfg.Broker, token.Error())
	}
	return p, nil
}

// Topic returns the topic outcomes of workflow are published on.
func (p *MQTTPublisher) Topic(workflow string) string {
	return p.prefix + "/" + workflow
}

// Publish sends outcome with QoS 1. It fails fast while disconnected.
func (p *MQTTPublisher) Publish(ctx context.Context, outcome Outcome) error {
	if !p.client.IsConnected() {
		return errors.New("MQTT client not connected")
	}
	if outcome.Timestamp.IsZero() {
		outcome.Timestamp = time.Now()
	}

	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	token := p.client.Publish(p.Topic(outcome.Workflow), 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return errors.New("timed out publishing outcome")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish outcome: %w", err)
	}
	return nil
}

// Connected reports the last known connection state.
func (p *MQTTPublisher) Connected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		log.Info("Disconnecting MQTT client...")
		p.client.Disconnect(250)
	}
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
}

func (p *MQTTPublisher) connectionLostHandler(client mqtt.Client, err error) {
	log.Errorf("MQTT connection lost: %v. Attempting to reconnect...", err)
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
}

func (p *MQTTPublisher) onConnectHandler(client mqtt.Client) {
	log.Info("Connected to MQTT broker")
	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()
}
