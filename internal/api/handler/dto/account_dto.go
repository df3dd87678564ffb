package dto

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"account-service/internal/domain/account"

	"github.com/shopspring/decimal"
)

type CreateAccountRequest struct {
	CustomerID     int64  `json:"customerId"`
	AccountNumber  string `json:"accountNumber"`
	AccountType    string `json:"accountType"`
	InitialBalance string `json:"initialBalance"`
	Currency       string `json:"currency"`
}

func (r *CreateAccountRequest) Validate() error {
	if r.CustomerID <= 0 {
		return fmt.Errorf("customerId must be a positive number")
	}
	if strings.TrimSpace(r.AccountNumber) == "" {
		return fmt.Errorf("accountNumber cannot be empty")
	}
	if _, err := account.ParseType(r.AccountType); err != nil {
		return fmt.Errorf("accountType must be SAVINGS or CHECKING")
	}
	if _, err := r.ParsedInitialBalance(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Currency) == "" {
		return fmt.Errorf("currency cannot be empty")
	}
	return nil
}

// ParsedInitialBalance treats an omitted balance as zero.
func (r *CreateAccountRequest) ParsedInitialBalance() (decimal.Decimal, error) {
	if strings.TrimSpace(r.InitialBalance) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(r.InitialBalance))
	if err != nil {
		return decimal.Zero, fmt.Errorf("initialBalance is not a valid decimal amount")
	}
	return d, nil
}

type AdjustBalanceRequest struct {
	Amount string `json:"amount"`
}

func (r *AdjustBalanceRequest) Validate() error {
	_, err := r.ParsedAmount()
	return err
}

func (r *AdjustBalanceRequest) ParsedAmount() (decimal.Decimal, error) {
	amount := strings.TrimSpace(r.Amount)
	if amount == "" {
		return decimal.Zero, fmt.Errorf("amount cannot be empty")
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount is not a valid decimal amount")
	}
	if d.IsZero() {
		return decimal.Zero, fmt.Errorf("amount cannot be zero")
	}
	return d, nil
}

type AccountResponse struct {
	AccountID     string    `json:"accountId"`
	AccountNumber string    `json:"accountNumber"`
	CustomerID    string    `json:"customerId"`
	CustomerName  string    `json:"customerName,omitempty"`
	AccountType   string    `json:"accountType"`
	Balance       string    `json:"balance"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

func NewAccountResponse(acct *account.Account) AccountResponse {
	if acct == nil {
		return AccountResponse{}
	}

	return AccountResponse{
		AccountID:     strconv.FormatInt(acct.ID, 10),
		AccountNumber: acct.AccountNumber,
		CustomerID:    strconv.FormatInt(acct.CustomerID, 10),
		AccountType:   string(acct.Type),
		Balance:       acct.Balance.StringFixed(2),
		Currency:      acct.Currency,
		Status:        string(acct.Status),
		CreatedAt:     acct.CreatedAt,
	}
}

func NewAccountProjectionResponse(p *account.Projection) AccountResponse {
	if p == nil {
		return AccountResponse{}
	}

	return AccountResponse{
		AccountID:     strconv.FormatInt(p.ID, 10),
		AccountNumber: p.AccountNumber,
		CustomerID:    strconv.FormatInt(p.CustomerID, 10),
		CustomerName:  p.CustomerName,
		AccountType:   string(p.Type),
		Balance:       p.Balance.StringFixed(2),
		Currency:      p.Currency,
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt,
	}
}
