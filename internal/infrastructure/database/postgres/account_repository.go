package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"account-service/internal/domain/account"
	"account-service/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

const (
	constraintAccountNumber = "accounts_account_number_key"
	constraintCustomerEmail = "customers_email_key"
	constraintCustomerPhone = "customers_phone_key"
	constraintAccountsFK    = "accounts_customer_id_fkey"
)

const uniqueViolationCode = "23505"
const foreignKeyViolationCode = "23503"

// uniqueViolation reports the violated constraint name when err is a
// PostgreSQL unique-constraint error.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func foreignKeyViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolationCode {
		return pgErr.ConstraintName, true
	}
	return "", false
}

type AccountRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ account.Repository = (*AccountRepository)(nil)

func NewAccountRepository(db DBPool, logger *slog.Logger) *AccountRepository {
	if db == nil {
		panic("DBPool cannot be nil for AccountRepository")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewAccountRepository, using default stderr handler")
	}
	return &AccountRepository{
		db:     db,
		logger: logger.With("component", "AccountRepository"),
	}
}

// Create inserts the account. The unique constraint on account_number
// decides duplicates atomically with the write; a violation surfaces as
// account.ErrAccountNumberTaken.
func (r *AccountRepository) Create(ctx context.Context, acct *account.Account) error {
	if acct == nil {
		return fmt.Errorf("%w: account cannot be nil", apperrors.ErrInvalidArgument)
	}

	r.logger.InfoContext(ctx, "Attempting to insert new account", slog.String("accountNumber", acct.AccountNumber))

	query := `
        INSERT INTO accounts (account_number, customer_id, account_type, balance, currency, status, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		acct.AccountNumber,
		acct.CustomerID,
		acct.Type,
		acct.Balance,
		acct.Currency,
		acct.Status,
		acct.Version,
	).Scan(
		&acct.ID,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)

	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			r.logger.WarnContext(ctx, "Unique constraint violation inserting account",
				slog.String("constraint", constraint))
			return fmt.Errorf("%w: %s", account.ErrAccountNumberTaken, acct.AccountNumber)
		}
		if constraint, ok := foreignKeyViolation(err); ok && constraint == constraintAccountsFK {
			r.logger.WarnContext(ctx, "Owning customer vanished before account insert committed")
			return fmt.Errorf("%w: customer %d", apperrors.ErrNotFound, acct.CustomerID)
		}
		r.logger.ErrorContext(ctx, "Failed to insert account", slog.Any("error", err))
		return fmt.Errorf("%w: failed to insert account: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Account inserted successfully", slog.Int64("accountID", acct.ID))
	return nil
}

// Update writes balance and status conditionally on the version the
// aggregate was loaded with. A zero-row result on an existing account
// means another writer got there first.
func (r *AccountRepository) Update(ctx context.Context, acct *account.Account) error {
	if acct == nil {
		return fmt.Errorf("%w: account cannot be nil", apperrors.ErrInvalidArgument)
	}

	r.logger.InfoContext(ctx, "Attempting conditional account update",
		slog.Int64("accountID", acct.ID), slog.Int64("version", acct.Version))

	query := `
        UPDATE accounts
        SET balance = $1,
            status = $2,
            version = version + 1,
            updated_at = NOW()
        WHERE id = $3 AND version = $4`

	cmdTag, err := r.db.Exec(ctx, query,
		acct.Balance,
		acct.Status,
		acct.ID,
		acct.Version,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update account", slog.Any("error", err))
		return fmt.Errorf("%w: failed to update account: %w", apperrors.ErrDatabase, err)
	}

	if cmdTag.RowsAffected() == 0 {
		exists, existsErr := r.exists(ctx, acct.ID)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			r.logger.WarnContext(ctx, "Update affected zero rows, account not found", slog.Int64("accountID", acct.ID))
			return account.ErrNotFound
		}
		r.logger.WarnContext(ctx, "Update affected zero rows, stale version rejected",
			slog.Int64("accountID", acct.ID), slog.Int64("version", acct.Version))
		return account.ErrUpdateConflict
	}

	acct.Version++
	r.logger.InfoContext(ctx, "Account updated successfully", slog.Int64("accountID", acct.ID))
	return nil
}

func (r *AccountRepository) exists(ctx context.Context, accountID int64) (bool, error) {
	var one int
	err := r.db.QueryRow(ctx, `SELECT 1 FROM accounts WHERE id = $1`, accountID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		r.logger.ErrorContext(ctx, "Failed to check account existence", slog.Any("error", err))
		return false, fmt.Errorf("%w: failed to check account existence: %w", apperrors.ErrDatabase, err)
	}
	return true, nil
}

const accountColumns = `id, account_number, customer_id, account_type, balance, currency, status, version, created_at, updated_at`

func (r *AccountRepository) scanAccount(row pgx.Row) (*account.Account, error) {
	var acct account.Account
	err := row.Scan(
		&acct.ID,
		&acct.AccountNumber,
		&acct.CustomerID,
		&acct.Type,
		&acct.Balance,
		&acct.Currency,
		&acct.Status,
		&acct.Version,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (r *AccountRepository) FindByID(ctx context.Context, accountID int64) (*account.Account, error) {
	r.logger.InfoContext(ctx, "Attempting to find account by ID", slog.Int64("accountID", accountID))

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acct, err := r.scanAccount(r.db.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Account not found", slog.Int64("accountID", accountID))
			return nil, account.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to query/scan account by ID", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get account by ID: %w", apperrors.ErrDatabase, err)
	}

	return acct, nil
}

func (r *AccountRepository) FindByNumber(ctx context.Context, accountNumber string) (*account.Account, error) {
	r.logger.InfoContext(ctx, "Attempting to find account by number", slog.String("accountNumber", accountNumber))

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`

	acct, err := r.scanAccount(r.db.QueryRow(ctx, query, accountNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Account not found", slog.String("accountNumber", accountNumber))
			return nil, account.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to query/scan account by number", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get account by number: %w", apperrors.ErrDatabase, err)
	}

	return acct, nil
}

func (r *AccountRepository) FindByCustomerID(ctx context.Context, customerID int64) ([]*account.Account, error) {
	r.logger.InfoContext(ctx, "Attempting to find accounts by customer ID", slog.Int64("customerID", customerID))

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE customer_id = $1 ORDER BY id ASC`

	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query accounts by customer ID", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to query accounts by customer ID: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	accounts := make([]*account.Account, 0)
	for rows.Next() {
		acct, err := r.scanAccount(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan account row", slog.Any("error", err))
			return nil, fmt.Errorf("%w: failed to scan account row: %w", apperrors.ErrDatabase, err)
		}
		accounts = append(accounts, acct)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating account rows", slog.Any("error", err))
		return nil, fmt.Errorf("%w: error iterating account rows: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Finished finding accounts", slog.Int("count", len(accounts)))
	return accounts, nil
}

func (r *AccountRepository) SummarizeBalances(ctx context.Context) ([]account.BalanceSummary, error) {
	r.logger.DebugContext(ctx, "Attempting to summarize balances per currency and status")

	query := `
        SELECT currency, status, COUNT(*), COALESCE(SUM(balance), 0)
        FROM accounts
        GROUP BY currency, status
        ORDER BY currency, status`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query balance summary", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to query balance summary: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	summaries := make([]account.BalanceSummary, 0)
	for rows.Next() {
		var s account.BalanceSummary
		if err := rows.Scan(&s.Currency, &s.Status, &s.AccountCount, &s.TotalBalance); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan balance summary row", slog.Any("error", err))
			return nil, fmt.Errorf("%w: failed to scan balance summary row: %w", apperrors.ErrDatabase, err)
		}
		summaries = append(summaries, s)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating balance summary rows", slog.Any("error", err))
		return nil, fmt.Errorf("%w: error iterating balance summary rows: %w", apperrors.ErrDatabase, err)
	}

	r.logger.DebugContext(ctx, "Finished summarizing balances", slog.Int("rows", len(summaries)))
	return summaries, nil
}
