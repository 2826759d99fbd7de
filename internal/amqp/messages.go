package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CommandMessage is a queued read-modify-write command. Kind names the
// ledger operation; Payload holds everything needed to replay it.
type CommandMessage struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewCommandMessage wraps payload in a message with a fresh id.
func NewCommandMessage(kind string, payload any) (*CommandMessage, error) {
	if kind == "" {
		return nil, errors.New("command kind is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return &CommandMessage{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   body,
		Timestamp: time.Now(),
	}, nil
}

// ToJSON converts the message to JSON bytes
func (m *CommandMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Decode unmarshals the payload into v.
func (m *CommandMessage) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("command %s has no payload", m.ID)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Kind, err)
	}
	return nil
}

// CommandMessageFromJSON creates a message from JSON bytes
func CommandMessageFromJSON(data []byte) (*CommandMessage, error) {
	var msg CommandMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" || msg.Kind == "" {
		return nil, errors.New("command message missing id or kind")
	}
	return &msg, nil
}
