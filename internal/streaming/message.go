package streaming

import (
	"encoding/json"
	"errors"
)

type MessageType string

const (
	MessageTypeBroadcast MessageType = "broadcast"
	MessageTypeConfirmed MessageType = "confirmed"
	MessageTypeReverted  MessageType = "reverted"
	MessageTypeFailed    MessageType = "failed"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeBroadcast, MessageTypeConfirmed, MessageTypeReverted, MessageTypeFailed:
		return true
	default:
		return false
	}
}

// Message is one submission state change as published on the event stream.
type Message struct {
	Type        MessageType `json:"type"`
	ID          string      `json:"id"`
	ChainID     uint64      `json:"chain_id,omitempty"`
	TraceID     string      `json:"trace_id,omitempty"`
	TxHash      string      `json:"tx_hash,omitempty"`
	Function    string      `json:"function"`
	Category    string      `json:"category,omitempty"`
	From        string      `json:"from,omitempty"`
	To          string      `json:"to,omitempty"`
	Nonce       uint64      `json:"nonce,omitempty"`
	Value       string      `json:"value,omitempty"`
	Gas         uint64      `json:"gas,omitempty"`
	GasPrice    string      `json:"gas_price,omitempty"`
	Stage       string      `json:"stage,omitempty"`
	Error       string      `json:"error,omitempty"`
	BlockNumber uint64      `json:"block_number,omitempty"`
	GasUsed     uint64      `json:"gas_used,omitempty"`
	CreatedAt   int64       `json:"created_at,omitempty"`
	UpdatedAt   int64       `json:"updated_at,omitempty"`
}

func Encode(msg Message) ([]byte, error) {
	if !msg.Type.Valid() {
		return nil, errors.New("message type is invalid")
	}
	if msg.ID == "" {
		return nil, errors.New("submission id is required")
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if !msg.Type.Valid() {
		return Message{}, errors.New("message type is missing or unknown")
	}
	if msg.ID == "" {
		return Message{}, errors.New("submission id is missing")
	}
	return msg, nil
}
