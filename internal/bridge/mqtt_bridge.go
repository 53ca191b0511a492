// Package bridge republishes admitted relay events onto an MQTT broker so
// downstream hospital systems can consume the stream without holding a
// websocket open.
package bridge

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/emsgrid/vitals-relay/internal/models"
	"github.com/emsgrid/vitals-relay/pkg/mqtt"
)

// Bridge publishes events to per-kind topics under a common prefix.
// Publishing is fire-and-forget; a broker outage never blocks fan-out.
type Bridge struct {
	Client      mqtt.MQTTClient
	TopicPrefix string
	QOS         byte
	Logger      zerolog.Logger
}

// NewBridge wires a bridge around a connected MQTT client.
func NewBridge(client mqtt.MQTTClient, topicPrefix string, qos byte, logger zerolog.Logger) *Bridge {
	if topicPrefix == "" {
		topicPrefix = "vitals-relay"
	}
	return &Bridge{
		Client:      client,
		TopicPrefix: topicPrefix,
		QOS:         qos,
		Logger:      logger,
	}
}

// PublishVitals republishes one classified vitals event.
func (b *Bridge) PublishVitals(event models.VitalsEvent) {
	b.publish(b.TopicPrefix+"/vitals", event)
}

// PublishAlert republishes one emergency alert.
func (b *Bridge) PublishAlert(alert models.EmergencyAlert) {
	b.publish(b.TopicPrefix+"/alerts", alert)
}

func (b *Bridge) publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.Logger.Error().Err(err).Str("topic", topic).Msg("failed to marshal bridge payload")
		return
	}

	token := b.Client.Publish(topic, b.QOS, false, data)
	go func() {
		if token.Wait() && token.Error() != nil {
			b.Logger.Error().Err(token.Error()).Str("topic", topic).Msg("bridge publish failed")
		}
	}()
}
