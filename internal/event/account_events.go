package event

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountEventPayload struct {
	AccountID     int64           `json:"accountId"`
	AccountNumber string          `json:"accountNumber"`
	CustomerID    int64           `json:"customerId"`
	AccountType   string          `json:"accountType"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type AccountCreatedEvent struct {
	Timestamp time.Time           `json:"timestamp"`
	Payload   AccountEventPayload `json:"payload"`
}

type BalanceAdjustedEvent struct {
	Timestamp time.Time           `json:"timestamp"`
	Delta     decimal.Decimal     `json:"delta"`
	Payload   AccountEventPayload `json:"payload"`
}

type AccountClosedEvent struct {
	Timestamp time.Time           `json:"timestamp"`
	Payload   AccountEventPayload `json:"payload"`
}
