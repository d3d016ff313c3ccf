package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"saldo/internal/notify"
)

// ThresholdMessage carries a threshold notification over the wire. The
// worker journals it as-is; no database lookup is needed on the consumer
// side so the full event rides in the message.
type ThresholdMessage struct {
	ID        string      `json:"id"`
	Kind      notify.Kind `json:"kind"`
	Title     string      `json:"title"`
	Detail    string      `json:"detail"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewThresholdMessage wraps a notification event for publishing
func NewThresholdMessage(e notify.Event) *ThresholdMessage {
	return &ThresholdMessage{
		ID:        uuid.NewString(),
		Kind:      e.Kind,
		Title:     e.Title,
		Detail:    e.Detail,
		Timestamp: time.Now(),
	}
}

// Event reconstructs the notification event the message carries
func (m *ThresholdMessage) Event() notify.Event {
	return notify.Event{Kind: m.Kind, Title: m.Title, Detail: m.Detail}
}

// ToJSON converts the message to JSON bytes
func (m *ThresholdMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ThresholdMessageFromJSON creates a message from JSON bytes
func ThresholdMessageFromJSON(data []byte) (*ThresholdMessage, error) {
	var msg ThresholdMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
