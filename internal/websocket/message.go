package websocket

import (
	"encoding/json"
	"time"

	"github.com/scripta/scripta-api/internal/domain"
)

type MessageType string

const (
	// Client to Server
	MessageTypePing MessageType = "ping"

	// Server to Client
	MessageTypePong       MessageType = "pong"
	MessageTypeJobUpdated MessageType = "job.updated"
	MessageTypeError      MessageType = "error"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = b
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

type JobUpdatedPayload struct {
	JobID string          `json:"jobId"`
	State domain.JobState `json:"state"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
