package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/caselink/contactsync/internal/conf"
	"github.com/caselink/contactsync/internal/errors"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttDisconnectMs   = 250
)

// MQTTSink publishes sync events as JSON to an MQTT topic.
type MQTTSink struct {
	client mqtt.Client
	topic  string
}

// NewMQTTSink connects to the configured broker. The connection uses
// automatic reconnect so transient broker outages only drop events rather
// than failing sync runs.
func NewMQTTSink(settings *conf.MQTTSettings) (*MQTTSink, error) {
	if settings.Broker == "" {
		return nil, errors.Newf("MQTT broker address is required").
			Category(errors.CategoryConfiguration).
			Component("notify").
			Build()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(settings.Broker)
	opts.SetClientID(fmt.Sprintf("contactsync-%s", uuid.NewString()[:8]))
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetConnectRetryInterval(5 * time.Second)
	if settings.Username != "" {
		opts.SetUsername(settings.Username)
		opts.SetPassword(settings.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, errors.Newf("timed out connecting to MQTT broker %s", settings.Broker).
			Category(errors.CategoryTimeout).
			Context("broker", settings.Broker).
			Component("notify").
			Build()
	}
	if err := token.Error(); err != nil {
		return nil, errors.Newf("connecting to MQTT broker: %w", err).
			Category(errors.CategoryIntegration).
			Context("broker", settings.Broker).
			Component("notify").
			Build()
	}

	logger.Info("connected to MQTT broker", "broker", settings.Broker, "topic", settings.Topic)
	return &MQTTSink{client: client, topic: settings.Topic}, nil
}

// Publish sends one event to the configured topic.
func (s *MQTTSink) Publish(_ context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Newf("marshaling event: %w", err).
			Category(errors.CategoryValidation).
			Component("notify").
			Build()
	}

	token := s.client.Publish(s.topic, 0, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return errors.Newf("timed out publishing event to %s", s.topic).
			Category(errors.CategoryTimeout).
			Context("topic", s.topic).
			Component("notify").
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.Newf("publishing event: %w", err).
			Category(errors.CategoryIntegration).
			Context("topic", s.topic).
			Component("notify").
			Build()
	}
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(mqttDisconnectMs)
	return nil
}
