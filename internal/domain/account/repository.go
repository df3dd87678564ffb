package account

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("account not found")

	ErrInvalidState = errors.New("invalid account state")

	ErrInsufficientFunds = errors.New("insufficient funds")

	ErrInvalidTransition = errors.New("invalid account status transition")

	ErrAccountNumberTaken = errors.New("account number already taken")

	ErrUpdateConflict = errors.New("account was modified concurrently")
)

// BalanceSummary is one row of the per-currency rollup used by the
// balance snapshot batch job.
type BalanceSummary struct {
	Currency     string
	Status       Status
	AccountCount int64
	TotalBalance decimal.Decimal
}

// Repository is the persistence gateway for accounts. Uniqueness of the
// account number and stale-write detection are enforced by the store,
// not by callers: Create surfaces ErrAccountNumberTaken from the unique
// constraint, and Update is conditional on the Version the aggregate
// was loaded with, returning ErrUpdateConflict when the stored row has
// moved on. On success Update bumps the aggregate's Version in place.
type Repository interface {
	Create(ctx context.Context, acct *Account) error

	Update(ctx context.Context, acct *Account) error

	FindByID(ctx context.Context, accountID int64) (*Account, error)

	FindByNumber(ctx context.Context, accountNumber string) (*Account, error)

	FindByCustomerID(ctx context.Context, customerID int64) ([]*Account, error)

	SummarizeBalances(ctx context.Context) ([]BalanceSummary, error)
}
