package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrMalformedMessage = errors.New("malformed message")

// TransactionRecordedMessage announces a newly recorded ledger transaction.
// Consumers load the full record from the repository by id.
type TransactionRecordedMessage struct {
	TransactionID string    `json:"transaction_id"`
	ShopID        string    `json:"shop_id"`
	CustomerID    string    `json:"customer_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionRecordedMessage(transactionID, shopID, customerID string) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		TransactionID: transactionID,
		ShopID:        shopID,
		CustomerID:    customerID,
		Timestamp:     time.Now().UTC(),
	}
}

func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionRecordedMessageFromJSON decodes and checks a message body.
func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Join(ErrMalformedMessage, err)
	}
	if msg.TransactionID == "" {
		return nil, errors.Join(ErrMalformedMessage, errors.New("missing transaction_id"))
	}
	return &msg, nil
}
