package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"account-service/internal/domain/customer"
	"account-service/internal/event"
	"account-service/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

// maxWriteAttempts bounds the load-mutate-save retries after a stale
// version was rejected by the repository.
const maxWriteAttempts = 3

// Projection is the read-only account shape handed to callers. It
// carries the customer display name but none of the aggregate's
// mutation hooks.
type Projection struct {
	ID            int64
	AccountNumber string
	CustomerID    int64
	CustomerName  string
	Type          Type
	Balance       decimal.Decimal
	Currency      string
	Status        Status
	CreatedAt     time.Time
}

type Service interface {
	CreateAccount(ctx context.Context, customerID int64, accountNumber string, accType Type, initialBalance decimal.Decimal, currency string) (*Account, error)
	GetAccountByID(ctx context.Context, accountID int64) (*Projection, error)
	GetAccountByNumber(ctx context.Context, accountNumber string) (*Projection, error)
	ListCustomerAccounts(ctx context.Context, customerID int64) ([]*Account, error)
	AdjustBalance(ctx context.Context, accountID int64, delta decimal.Decimal) (*Account, error)
	CloseAccount(ctx context.Context, accountID int64) error
}

var _ Service = (*service)(nil)

type service struct {
	repo           Repository
	customers      customer.Service
	pub            event.Publisher
	overdraftLimit decimal.Decimal
	logger         *slog.Logger
}

func NewService(repo Repository, customers customer.Service, publisher event.Publisher, overdraftLimit decimal.Decimal, logger *slog.Logger) Service {
	if repo == nil {
		panic("account repository cannot be nil")
	}
	if customers == nil {
		panic("customer service cannot be nil")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewService, using default stderr handler")
	}

	if publisher == nil {
		logger.Warn("Warning: No event publisher provided to NewService, account events will not be published")
	}

	if overdraftLimit.IsNegative() {
		logger.Warn("Negative overdraft limit configured, treating as zero", slog.String("overdraftLimit", overdraftLimit.String()))
		overdraftLimit = decimal.Zero
	}

	return &service{
		repo:           repo,
		customers:      customers,
		pub:            publisher,
		overdraftLimit: overdraftLimit,
		logger:         logger.With(slog.String("component", "accountService")),
	}
}

func NewAccountEventPayload(acct *Account) event.AccountEventPayload {
	if acct == nil {
		return event.AccountEventPayload{}
	}
	return event.AccountEventPayload{
		AccountID:     acct.ID,
		AccountNumber: acct.AccountNumber,
		CustomerID:    acct.CustomerID,
		AccountType:   string(acct.Type),
		Balance:       acct.Balance,
		Currency:      acct.Currency,
		Status:        string(acct.Status),
		CreatedAt:     acct.CreatedAt,
		UpdatedAt:     acct.UpdatedAt,
	}
}

func (s *service) CreateAccount(ctx context.Context, customerID int64, accountNumber string, accType Type, initialBalance decimal.Decimal, currency string) (*Account, error) {
	logCtx := s.logger.With(slog.Int64("customerID", customerID), slog.String("accountNumber", accountNumber))
	logCtx.InfoContext(ctx, "Attempting to create new account")

	owner, err := s.customers.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			logCtx.WarnContext(ctx, "Owning customer not found")
			return nil, customer.ErrNotFound
		}
		logCtx.ErrorContext(ctx, "Failed to load owning customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to load customer %d: %w", customerID, err)
	}

	acct, err := NewAccount(accountNumber, owner.CustomerID, accType, initialBalance, currency)
	if err != nil {
		logCtx.WarnContext(ctx, "Account construction rejected", slog.Any("error", err))
		return nil, err
	}
	logCtx.InfoContext(ctx, "Account aggregate constructed, calling repository Create")

	// The unique constraint on account_number is the sole authority on
	// duplicates. No prior existence check: it would only race.
	if err := s.repo.Create(ctx, acct); err != nil {
		if errors.Is(err, ErrAccountNumberTaken) {
			logCtx.WarnContext(ctx, "Account number already taken")
			return nil, ErrAccountNumberTaken
		}
		logCtx.ErrorContext(ctx, "Repository failed to create account", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create account %s: %w", accountNumber, err)
	}

	logCtx = logCtx.With(slog.Int64("accountID", acct.ID))
	logCtx.InfoContext(ctx, "Successfully created account, publishing creation event")
	if s.pub != nil {
		createdEvent := event.AccountCreatedEvent{
			Timestamp: time.Now(),
			Payload:   NewAccountEventPayload(acct),
		}
		if pubErr := s.pub.PublishAccountCreated(ctx, createdEvent); pubErr != nil {
			logCtx.ErrorContext(ctx, "Account created, but FAILED to publish creation event", slog.Any("error", pubErr))
		}
	}

	return acct, nil
}

func (s *service) GetAccountByID(ctx context.Context, accountID int64) (*Projection, error) {
	s.logger.InfoContext(ctx, "Attempting to get account by ID", slog.Int64("accountID", accountID))

	acct, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, "Account not found by repository", slog.Int64("accountID", accountID))
			return nil, ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Repository error finding account", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get account %d: %w", accountID, err)
	}

	return s.project(ctx, acct)
}

func (s *service) GetAccountByNumber(ctx context.Context, accountNumber string) (*Projection, error) {
	s.logger.InfoContext(ctx, "Attempting to get account by number", slog.String("accountNumber", accountNumber))

	acct, err := s.repo.FindByNumber(ctx, accountNumber)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, "Account not found by repository", slog.String("accountNumber", accountNumber))
			return nil, ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Repository error finding account by number", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get account %s: %w", accountNumber, err)
	}

	return s.project(ctx, acct)
}

func (s *service) project(ctx context.Context, acct *Account) (*Projection, error) {
	owner, err := s.customers.GetCustomer(ctx, acct.CustomerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load owning customer for projection",
			slog.Int64("accountID", acct.ID), slog.Int64("customerID", acct.CustomerID), slog.Any("error", err))
		return nil, fmt.Errorf("failed to load customer %d for account %d: %w", acct.CustomerID, acct.ID, err)
	}

	return &Projection{
		ID:            acct.ID,
		AccountNumber: acct.AccountNumber,
		CustomerID:    acct.CustomerID,
		CustomerName:  owner.DisplayName(),
		Type:          acct.Type,
		Balance:       acct.Balance,
		Currency:      acct.Currency,
		Status:        acct.Status,
		CreatedAt:     acct.CreatedAt,
	}, nil
}

func (s *service) ListCustomerAccounts(ctx context.Context, customerID int64) ([]*Account, error) {
	s.logger.InfoContext(ctx, "Attempting to list accounts for customer", slog.Int64("customerID", customerID))

	if _, err := s.customers.GetCustomer(ctx, customerID); err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load customer %d: %w", customerID, err)
	}

	accounts, err := s.repo.FindByCustomerID(ctx, customerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Repository error listing customer accounts", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list accounts for customer %d: %w", customerID, err)
	}

	s.logger.InfoContext(ctx, "Successfully listed customer accounts", slog.Int("count", len(accounts)))
	return accounts, nil
}

// AdjustBalance runs the load-mutate-save sequence under optimistic
// concurrency: a write rejected as stale is retried with a fresh load,
// never merged. Domain rule failures are terminal and leave the stored
// balance untouched.
func (s *service) AdjustBalance(ctx context.Context, accountID int64, delta decimal.Decimal) (*Account, error) {
	logCtx := s.logger.With(slog.Int64("accountID", accountID), slog.String("delta", delta.String()))
	logCtx.InfoContext(ctx, "Attempting to adjust account balance")

	if delta.IsZero() {
		logCtx.WarnContext(ctx, "Validation failed: zero adjustment amount")
		return nil, fmt.Errorf("%w: adjustment amount cannot be zero", apperrors.ErrInvalidArgument)
	}

	var lastErr error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		acct, err := s.repo.FindByID(ctx, accountID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				logCtx.WarnContext(ctx, "Account not found by repository")
				return nil, ErrNotFound
			}
			logCtx.ErrorContext(ctx, "Repository error loading account for adjustment", slog.Any("error", err))
			return nil, fmt.Errorf("failed to load account %d: %w", accountID, err)
		}

		if err := acct.ApplyDelta(delta, s.overdraftLimit); err != nil {
			logCtx.WarnContext(ctx, "Balance adjustment rejected by aggregate", slog.Any("error", err))
			return nil, err
		}

		err = s.repo.Update(ctx, acct)
		if err == nil {
			logCtx.InfoContext(ctx, "Successfully adjusted balance",
				slog.String("newBalance", acct.Balance.String()), slog.Int("attempt", attempt))
			s.publishBalanceAdjusted(ctx, acct, delta)
			return acct, nil
		}
		if !errors.Is(err, ErrUpdateConflict) {
			logCtx.ErrorContext(ctx, "Repository failed to persist adjusted balance", slog.Any("error", err))
			return nil, fmt.Errorf("failed to persist balance adjustment for account %d: %w", accountID, err)
		}

		logCtx.WarnContext(ctx, "Stale version rejected, retrying adjustment", slog.Int("attempt", attempt))
		lastErr = err
	}

	logCtx.ErrorContext(ctx, "Giving up balance adjustment after repeated version conflicts")
	return nil, fmt.Errorf("adjustment on account %d exhausted %d attempts: %w", accountID, maxWriteAttempts, lastErr)
}

func (s *service) publishBalanceAdjusted(ctx context.Context, acct *Account, delta decimal.Decimal) {
	if s.pub == nil {
		return
	}
	adjustedEvent := event.BalanceAdjustedEvent{
		Timestamp: time.Now(),
		Delta:     delta,
		Payload:   NewAccountEventPayload(acct),
	}
	if err := s.pub.PublishBalanceAdjusted(ctx, adjustedEvent); err != nil {
		s.logger.ErrorContext(ctx, "Balance adjusted, but FAILED to publish event",
			slog.Int64("accountID", acct.ID), slog.Any("error", err))
	}
}

func (s *service) CloseAccount(ctx context.Context, accountID int64) error {
	logCtx := s.logger.With(slog.Int64("accountID", accountID))
	logCtx.InfoContext(ctx, "Attempting to close account")

	var lastErr error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		acct, err := s.repo.FindByID(ctx, accountID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				logCtx.WarnContext(ctx, "Account not found by repository")
				return ErrNotFound
			}
			logCtx.ErrorContext(ctx, "Repository error loading account for closure", slog.Any("error", err))
			return fmt.Errorf("failed to load account %d: %w", accountID, err)
		}

		if err := acct.Close(); err != nil {
			logCtx.WarnContext(ctx, "Account closure rejected by aggregate", slog.Any("error", err))
			return err
		}

		err = s.repo.Update(ctx, acct)
		if err == nil {
			logCtx.InfoContext(ctx, "Successfully closed account", slog.Int("attempt", attempt))
			if s.pub != nil {
				closedEvent := event.AccountClosedEvent{
					Timestamp: time.Now(),
					Payload:   NewAccountEventPayload(acct),
				}
				if pubErr := s.pub.PublishAccountClosed(ctx, closedEvent); pubErr != nil {
					logCtx.ErrorContext(ctx, "Account closed, but FAILED to publish event", slog.Any("error", pubErr))
				}
			}
			return nil
		}
		if !errors.Is(err, ErrUpdateConflict) {
			logCtx.ErrorContext(ctx, "Repository failed to persist account closure", slog.Any("error", err))
			return fmt.Errorf("failed to persist closure of account %d: %w", accountID, err)
		}

		logCtx.WarnContext(ctx, "Stale version rejected, retrying closure", slog.Int("attempt", attempt))
		lastErr = err
	}

	logCtx.ErrorContext(ctx, "Giving up account closure after repeated version conflicts")
	return fmt.Errorf("closing account %d exhausted %d attempts: %w", accountID, maxWriteAttempts, lastErr)
}
