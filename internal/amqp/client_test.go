package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{15, 30 * time.Second},
		{-1, 1 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if result := exponentialBackoff(tt.attempt); result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connect: connection refused"), true},
		{"unexpected EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"amqp closed", fmt.Errorf("consume: %w", amqp091.ErrClosed), true},
		{"other error", errors.New("some other error"), false},
		{"validation error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := isConnectionError(tt.err); result != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "test_exchange", queueName: "test_queue"}

	if client.isCircuitOpen() {
		t.Fatal("circuit breaker should be closed initially")
	}

	for i := 0; i < maxFailures-1; i++ {
		client.recordFailure()
	}
	if client.isCircuitOpen() {
		t.Fatal("circuit should stay closed below the threshold")
	}
	client.recordFailure()
	if !client.isCircuitOpen() {
		t.Fatal("circuit should open after max failures")
	}

	client.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if client.isCircuitOpen() {
		t.Fatal("circuit should go half-open after the timeout")
	}
	if atomic.LoadInt32(&client.state) != StateHalfOpen {
		t.Fatalf("state = %d, want half-open", client.state)
	}

	client.recordFailure()
	if !client.isCircuitOpen() {
		t.Fatal("a failure while half-open should reopen the circuit")
	}

	client.recordSuccess()
	if client.isCircuitOpen() || atomic.LoadInt64(&client.failureCount) != 0 {
		t.Fatal("success should close the circuit and reset failures")
	}
}

func TestClient_PublishGuards(t *testing.T) {
	client := &Client{exchangeName: "test_exchange", queueName: "test_queue"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.PublishTransactionRecorded(ctx, "txn1", "shop1", "cust1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	atomic.StoreInt32(&client.state, StateOpen)
	client.lastFailure = time.Now()
	err := client.PublishTransactionRecorded(context.Background(), "txn1", "shop1", "cust1")
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}

	client.recordSuccess()
	err = client.PublishTransactionRecorded(context.Background(), "txn1", "shop1", "cust1")
	if err == nil || !strings.Contains(err.Error(), "not connected") {
		t.Fatalf("expected not connected error, got %v", err)
	}
	if atomic.LoadInt64(&client.failureCount) != 1 {
		t.Fatalf("failed publish should count as a failure")
	}
}

func TestTransactionRecordedMessage(t *testing.T) {
	msg := NewTransactionRecordedMessage("txn1", "shop1", "cust1")
	if msg.Timestamp.IsZero() || time.Since(msg.Timestamp) > time.Second {
		t.Fatalf("timestamp should be recent, got %v", msg.Timestamp)
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	for _, key := range []string{`"transaction_id":"txn1"`, `"shop_id":"shop1"`, `"customer_id":"cust1"`, `"timestamp"`} {
		if !strings.Contains(string(body), key) {
			t.Fatalf("body %s missing %s", body, key)
		}
	}
}

func TestTransactionRecordedMessageFromJSON_Invalid(t *testing.T) {
	for _, body := range []string{`not json`, `{"transaction_id": 12}`, `{"shop_id":"shop1"}`} {
		if _, err := TransactionRecordedMessageFromJSON([]byte(body)); !errors.Is(err, ErrMalformedMessage) {
			t.Fatalf("%s: expected malformed message error, got %v", body, err)
		}
	}
}

type fakeAck struct {
	acked, nacked, requeued int
}

func (f *fakeAck) Ack(uint64, bool) error { f.acked++; return nil }
func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked++
	if requeue {
		f.requeued++
	}
	return nil
}
func (f *fakeAck) Reject(uint64, bool) error { return nil }

func TestProcessDelivery(t *testing.T) {
	ctx := context.Background()
	good := []byte(`{"transaction_id":"txn1","shop_id":"shop1","customer_id":"cust1","timestamp":"2024-08-10T14:30:00Z"}`)

	tests := []struct {
		name       string
		body       []byte
		handlerErr error
		want       fakeAck
	}{
		{"handled", good, nil, fakeAck{acked: 1}},
		{"handler failure requeues", good, errors.New("sheets down"), fakeAck{nacked: 1, requeued: 1}},
		{"permanent failure dropped", good, fmt.Errorf("get transaction: %w", ErrPermanent), fakeAck{nacked: 1}},
		{"malformed dropped", []byte(`{`), nil, fakeAck{nacked: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAck{}
			var got *TransactionRecordedMessage
			processDelivery(ctx, amqp091.Delivery{Acknowledger: ack, Body: tt.body}, func(_ context.Context, m *TransactionRecordedMessage) error {
				got = m
				return tt.handlerErr
			})
			if *ack != tt.want {
				t.Fatalf("acks = %+v, want %+v", *ack, tt.want)
			}
			if tt.want.acked == 1 && (got == nil || got.TransactionID != "txn1") {
				t.Fatalf("handler got %+v", got)
			}
		})
	}
}
