package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates the message payloads sharing the events queue.
type Kind string

const (
	KindTransactionSync Kind = "transaction_sync"
	KindBudgetAlert     Kind = "budget_alert"
)

// Message is the envelope published to the events exchange. Exactly one
// payload field is set, matching Kind.
type Message struct {
	Kind            Kind                    `json:"kind"`
	Timestamp       time.Time               `json:"timestamp"`
	TransactionSync *TransactionSyncMessage `json:"transaction_sync,omitempty"`
	BudgetAlert     *BudgetAlertMessage     `json:"budget_alert,omitempty"`
}

// TransactionSyncMessage asks the worker to mirror one transaction to the
// spreadsheet. It carries only identifiers; the worker reads the current
// row from the database so stale deliveries cannot resurrect old data.
type TransactionSyncMessage struct {
	TransactionID int64 `json:"transaction_id"`
	UserID        int64 `json:"user_id"`
}

// BudgetAlertMessage carries a threshold crossing for the worker to turn
// into a stored notification.
type BudgetAlertMessage struct {
	UserID         int64   `json:"user_id"`
	BudgetID       int64   `json:"budget_id"`
	CategoryName   string  `json:"category_name"`
	State          string  `json:"state"`
	PercentageUsed float64 `json:"percentage_used"`
	SpentCents     int64   `json:"spent_cents"`
	AmountCents    int64   `json:"amount_cents"`
}

func NewTransactionSyncMessage(transactionID, userID int64) *Message {
	return &Message{
		Kind:            KindTransactionSync,
		Timestamp:       time.Now(),
		TransactionSync: &TransactionSyncMessage{TransactionID: transactionID, UserID: userID},
	}
}

func NewBudgetAlertMessage(alert BudgetAlertMessage) *Message {
	return &Message{
		Kind:        KindBudgetAlert,
		Timestamp:   time.Now(),
		BudgetAlert: &alert,
	}
}

func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Validate checks the envelope is self-consistent before handling.
func (m *Message) Validate() error {
	switch m.Kind {
	case KindTransactionSync:
		if m.TransactionSync == nil {
			return fmt.Errorf("message kind %q without payload", m.Kind)
		}
	case KindBudgetAlert:
		if m.BudgetAlert == nil {
			return fmt.Errorf("message kind %q without payload", m.Kind)
		}
	default:
		return fmt.Errorf("unknown message kind %q", m.Kind)
	}
	return nil
}

func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
