package account

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeSavings  Type = "SAVINGS"
	TypeChecking Type = "CHECKING"
)

func ParseType(s string) (Type, error) {
	switch Type(strings.ToUpper(strings.TrimSpace(s))) {
	case TypeSavings:
		return TypeSavings, nil
	case TypeChecking:
		return TypeChecking, nil
	default:
		return "", fmt.Errorf("%w: unknown account type %q", ErrInvalidState, s)
	}
}

type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusClosed Status = "CLOSED"
)

// Account is the aggregate root. Balance, Status and Version are only
// mutated through its methods; the service persists the result with a
// version-checked write.
type Account struct {
	ID            int64           `json:"id"`
	AccountNumber string          `json:"accountNumber"`
	CustomerID    int64           `json:"customerId"`
	Type          Type            `json:"accountType"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      string          `json:"currency"`
	Status        Status          `json:"status"`
	Version       int64           `json:"-"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// NewAccount validates the construction-time invariants. The initial
// balance may not consume overdraft, regardless of account type.
func NewAccount(accountNumber string, customerID int64, accType Type, initialBalance decimal.Decimal, currency string) (*Account, error) {
	accountNumber = strings.TrimSpace(accountNumber)
	if accountNumber == "" {
		return nil, fmt.Errorf("%w: account number cannot be empty", ErrInvalidState)
	}
	if customerID <= 0 {
		return nil, fmt.Errorf("%w: account requires an owning customer", ErrInvalidState)
	}
	if accType != TypeSavings && accType != TypeChecking {
		return nil, fmt.Errorf("%w: unknown account type %q", ErrInvalidState, accType)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !IsSupportedCurrency(currency) {
		return nil, fmt.Errorf("%w: unrecognized currency code %q", ErrInvalidState, currency)
	}
	if initialBalance.IsNegative() {
		return nil, fmt.Errorf("%w: initial balance cannot be negative", ErrInvalidState)
	}

	now := time.Now()
	return &Account{
		AccountNumber: accountNumber,
		CustomerID:    customerID,
		Type:          accType,
		Balance:       initialBalance,
		Currency:      currency,
		Status:        StatusActive,
		Version:       0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// floor is the lowest balance the account may reach. SAVINGS never goes
// below zero; CHECKING may dip down to the configured overdraft limit.
func (a *Account) floor(overdraftLimit decimal.Decimal) decimal.Decimal {
	if a.Type == TypeChecking && overdraftLimit.IsPositive() {
		return overdraftLimit.Neg()
	}
	return decimal.Zero
}

// ApplyDelta adjusts the balance by delta (positive or negative). The
// caller persists the new state; on failure the account is unchanged.
func (a *Account) ApplyDelta(delta decimal.Decimal, overdraftLimit decimal.Decimal) error {
	if a.Status == StatusClosed {
		return fmt.Errorf("%w: account %s is closed", ErrInvalidTransition, a.AccountNumber)
	}

	newBalance := a.Balance.Add(delta)
	if newBalance.LessThan(a.floor(overdraftLimit)) {
		return fmt.Errorf("%w: balance %s cannot absorb delta %s", ErrInsufficientFunds, a.Balance, delta)
	}

	a.Balance = newBalance
	a.UpdatedAt = time.Now()
	return nil
}

// Close transitions the account to CLOSED. A non-zero balance must be
// settled first, and CLOSED is terminal.
func (a *Account) Close() error {
	if a.Status == StatusClosed {
		return fmt.Errorf("%w: account %s is already closed", ErrInvalidTransition, a.AccountNumber)
	}
	if !a.Balance.IsZero() {
		return fmt.Errorf("%w: cannot close account %s with balance %s", ErrInvalidTransition, a.AccountNumber, a.Balance)
	}

	a.Status = StatusClosed
	a.UpdatedAt = time.Now()
	return nil
}
