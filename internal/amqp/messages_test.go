package amqp

import (
	"context"
	"testing"
	"time"

	"moneta/internal/core"
)

func TestTransactionCreatedMessageRoundTrip(t *testing.T) {
	tx := core.Transaction{
		ID:         "abc-123",
		Kind:       core.Expense,
		Amount:     34.5,
		Currency:   "CNY",
		OccurredAt: time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC),
	}

	body, err := NewTransactionCreatedMessage(tx).ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	got, err := TransactionCreatedMessageFromJSON(body)
	if err != nil {
		t.Fatal(err)
	}

	if got.ID != tx.ID || got.Kind != "expense" || got.Amount != 34.5 {
		t.Errorf("decoded = %+v", got)
	}
	if !got.OccurredAt.Equal(tx.OccurredAt) {
		t.Errorf("occurredAt = %v, want %v", got.OccurredAt, tx.OccurredAt)
	}
}

func TestCaptureRequestMessageRoundTrip(t *testing.T) {
	body, err := NewCaptureRequestMessage("午餐 34.5 兰州拉面", core.Expense).ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	got, err := CaptureRequestMessageFromJSON(body)
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "午餐 34.5 兰州拉面" || got.Kind != "expense" {
		t.Errorf("decoded = %+v", got)
	}
}

func TestCaptureRequestMessageRejectsGarbage(t *testing.T) {
	if _, err := CaptureRequestMessageFromJSON([]byte("not json")); err == nil {
		t.Fatal("garbage payload must fail to decode")
	}
}

func TestNilClientPublishesNothing(t *testing.T) {
	var c *Client
	if err := c.PublishTransactionCreated(context.Background(), core.Transaction{}); err != nil {
		t.Fatalf("nil client publish = %v, want nil", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("nil client close = %v, want nil", err)
	}
}
