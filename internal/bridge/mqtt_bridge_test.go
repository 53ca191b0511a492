package bridge

import (
	"encoding/json"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/emsgrid/vitals-relay/internal/models"
)

type mockToken struct {
	err error
}

func (t *mockToken) Wait() bool                     { return true }
func (t *mockToken) WaitTimeout(time.Duration) bool { return true }
func (t *mockToken) Error() error                   { return t.err }
func (t *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Connect() pahomqtt.Token {
	args := m.Called()
	return args.Get(0).(pahomqtt.Token)
}

func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	args := m.Called(topic, qos, retained, payload)
	return args.Get(0).(pahomqtt.Token)
}

func (m *mockClient) Disconnect(quiesce uint) {
	m.Called(quiesce)
}

func TestBridge_PublishVitals(t *testing.T) {
	client := new(mockClient)
	bridge := NewBridge(client, "hospital/relay", 1, zerolog.Nop())

	var captured []byte
	client.On("Publish", "hospital/relay/vitals", byte(1), false, mock.MatchedBy(func(payload interface{}) bool {
		captured = payload.([]byte)
		return true
	})).Return(&mockToken{})

	bridge.PublishVitals(models.VitalsEvent{
		PatientID:      "PAT001",
		PatientName:    "John Doe",
		HeartRate:      82,
		EmergencyLevel: models.SeverityStable,
		TransmissionID: "PAT001_1717243200000",
	})

	client.AssertExpectations(t)

	var event models.VitalsEvent
	require.NoError(t, json.Unmarshal(captured, &event))
	assert.Equal(t, "PAT001", event.PatientID)
	assert.Equal(t, models.SeverityStable, event.EmergencyLevel)
}

func TestBridge_PublishAlert(t *testing.T) {
	client := new(mockClient)
	bridge := NewBridge(client, "", 0, zerolog.Nop())

	client.On("Publish", "vitals-relay/alerts", byte(0), false, mock.Anything).Return(&mockToken{})

	bridge.PublishAlert(models.EmergencyAlert{
		AlertID:     "ALERT_1",
		PatientName: "John Doe",
		Condition:   "Cardiac Arrest",
	})

	client.AssertExpectations(t)
}
