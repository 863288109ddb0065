// Package protocol defines the WebSocket message types exchanged
// between a joystick client and the bridge.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Client → Bridge messages
	TypeSample MessageType = "sample" // Joystick axis sample
	TypeSpeed  MessageType = "speed"  // Speed preset selection

	// Bridge → Client messages
	TypeAck   MessageType = "ack"   // Command outcome
	TypeState MessageType = "state" // Poll snapshot push

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// SampleData is one joystick tick. Both axes are in [-1, 1]; the
// bridge clamps out-of-range values rather than rejecting them.
type SampleData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SpeedData selects one of the three speed presets.
type SpeedData struct {
	Index int `json:"index"`
}

// AckData reports the outcome of the most recent client message.
type AckData struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
