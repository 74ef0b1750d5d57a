package amqp

import (
	"encoding/json"
	"time"

	"moneta/internal/core"
)

// TransactionCreatedMessage announces a committed transaction. It
// carries enough for consumers to react without a store round trip.
type TransactionCreatedMessage struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurredAt"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewTransactionCreatedMessage(tx core.Transaction) *TransactionCreatedMessage {
	return &TransactionCreatedMessage{
		ID:         tx.ID,
		Kind:       string(tx.Kind),
		Amount:     tx.Amount,
		Currency:   tx.Currency,
		OccurredAt: tx.OccurredAt,
		Timestamp:  time.Now(),
	}
}

func (m *TransactionCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionCreatedMessageFromJSON(data []byte) (*TransactionCreatedMessage, error) {
	var msg TransactionCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// CaptureRequestMessage is raw text forwarded from an automation (a
// phone shortcut, a chat bot) for extraction and capture by the
// worker.
type CaptureRequestMessage struct {
	Text      string    `json:"text"`
	Kind      string    `json:"kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewCaptureRequestMessage(text string, kind core.Kind) *CaptureRequestMessage {
	return &CaptureRequestMessage{
		Text:      text,
		Kind:      string(kind),
		Timestamp: time.Now(),
	}
}

func (m *CaptureRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func CaptureRequestMessageFromJSON(data []byte) (*CaptureRequestMessage, error) {
	var msg CaptureRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
