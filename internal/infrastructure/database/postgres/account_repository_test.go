package postgres

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"testing"
	"time"

	"account-service/internal/domain/account"
	"account-service/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

const pgxmockExpectationsNotMetMsg = "pgxmock expectations were not met"

var accountColumnNames = []string{
	"id", "account_number", "customer_id", "account_type", "balance",
	"currency", "status", "version", "created_at", "updated_at",
}

func setupAccountRepo(t *testing.T) (context.Context, *AccountRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to open a stub database connection: %v", err)
	}

	ctx := context.Background()
	repo := NewAccountRepository(mockPool, logger)

	return ctx, repo, mockPool
}

func testAccount() *account.Account {
	now := time.Now()
	return &account.Account{
		ID:            7,
		AccountNumber: "1234567890",
		CustomerID:    1,
		Type:          account.TypeSavings,
		Balance:       decimal.NewFromInt(1000),
		Currency:      "USD",
		Status:        account.StatusActive,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

const insertAccountQuery = `
        INSERT INTO accounts (account_number, customer_id, account_type, balance, currency, status, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
        RETURNING id, created_at, updated_at`

func TestCreateAccountWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupAccountRepo(t)
	defer mockPool.Close()

	acct := testAccount()
	acct.ID = 0
	acct.Version = 0

	mockPool.ExpectQuery(regexp.QuoteMeta(insertAccountQuery)).WithArgs(
		acct.AccountNumber,
		acct.CustomerID,
		acct.Type,
		acct.Balance,
		acct.Currency,
		acct.Status,
		acct.Version,
	).WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
		AddRow(int64(7), acct.CreatedAt, acct.UpdatedAt))

	err := repo.Create(ctx, acct)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), acct.ID)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestCreateAccountWhenNumberTaken(t *testing.T) {
	ctx, repo, mockPool := setupAccountRepo(t)
	defer mockPool.Close()

	acct := testAccount()
	acct.ID = 0
	acct.Version = 0

	mockPool.ExpectQuery(regexp.QuoteMeta(insertAccountQuery)).WithArgs(
		acct.AccountNumber,
		acct.CustomerID,
		acct.Type,
		acct.Balance,
		acct.Currency,
		acct.Status,
		acct.Version,
	).WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_account_number_key"})

	err := repo.Create(ctx, acct)
	assert.ErrorIs(t, err, account.ErrAccountNumberTaken)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestCreateAccountWhenCustomerVanished(t *testing.T) {
	ctx, repo, mockPool := setupAccountRepo(t)
	defer mockPool.Close()

	acct := testAccount()
	acct.ID = 0
	acct.Version = 0

	mockPool.ExpectQuery(regexp.QuoteMeta(insertAccountQuery)).WithArgs(
		acct.AccountNumber,
		acct.CustomerID,
		acct.Type,
		acct.Balance,
		acct.Currency,
		acct.Status,
		acct.Version,
	).WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "accounts_customer_id_fkey"})

	err := repo.Create(ctx, acct)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

const updateAccountQuery = `
        UPDATE accounts
        SET balance = $1,
            status = $2,
            version = version + 1,
            updated_at = NOW()
        WHERE id = $3 AND version = $4`

func TestUpdateAccountWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupAccountRepo(t)
	defer mockPool.Close()

	acct := testAccount()

	mockPool.ExpectExec(regexp.QuoteMeta(updateAccountQuery)).WithArgs(
		acct.Balance,
		acct.Status,
		acct.ID,
		int64(1),
	).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Update(ctx, acct)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), acct.Version, "successful update must bump the in-memory version")
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUpdateAccountWhenVersionStale(t *testing.T) {
	ctx, repo, mockPool := setupAccountRepo(t)
	defer mockPool.Close()

	acct := testAccount()

	mockPool.ExpectExec(regexp.QuoteMeta(updateAccountQuery)).WithArgs(
		acct.Balance,
		acct.Status,
		acct.ID,
		int64(1),
	).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM accounts WHERE id = $1`)).
		WithArgs(acct.ID).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	err := repo.Update(ctx, acct)
	assert.ErrorIs(t, err, account.ErrUpdateConflict)
	assert.Equal(t, int64(1), acct.Version)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUpdateAccountWhenMissing(t *testing.T) {
	ctx, repo, mockPool := setupAccountRepo(t)
	defer mockPool.Close()

	acct := testAccount()

	mockPool.ExpectExec(regexp.QuoteMeta(updateAccountQuery)).WithArgs(
		acct.Balance,
		acct.Status,
		acct.ID,
		int64(1),
	).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM accounts WHERE id = $1`)).
		WithArgs(acct.ID).
		WillReturnError(pgx.ErrNoRows)

	err := repo.Update(ctx, acct)
	assert.ErrorIs(t, err, account.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindAccountByIDReturnOne(t *testing.T) {
	ctx, repo, mockPool := setupAccountRepo(t)
	defer mockPool.Close()

	acct := testAccount()
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	mockPool.ExpectQuery(regexp.QuoteMeta(query)).WithArgs(acct.ID).
		WillReturnRows(pgxmock.NewRows(accountColumnNames).
			AddRow(acct.ID, acct.AccountNumber, acct.CustomerID, acct.Type, acct.Balance,
				acct.Currency, acct.Status, acct.Version, acct.CreatedAt, acct.UpdatedAt))

	result, err := repo.FindByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, acct.AccountNumber, result.AccountNumber)
	assert.True(t, acct.Balance.Equal(result.Balance))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindAccountByIDReturnNone(t *testing.T) {
	ctx, repo, mockPool := setupAccountRepo(t)
	defer mockPool.Close()

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	mockPool.ExpectQuery(regexp.QuoteMeta(query)).WithArgs(int64(404)).WillReturnError(pgx.ErrNoRows)

	result, err := repo.FindByID(ctx, 404)
	assert.ErrorIs(t, err, account.ErrNotFound)
	assert.Nil(t, result)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindAccountByNumberReturnOne(t *testing.T) {
	ctx, repo, mockPool := setupAccountRepo(t)
	defer mockPool.Close()

	acct := testAccount()
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`

	mockPool.ExpectQuery(regexp.QuoteMeta(query)).WithArgs(acct.AccountNumber).
		WillReturnRows(pgxmock.NewRows(accountColumnNames).
			AddRow(acct.ID, acct.AccountNumber, acct.CustomerID, acct.Type, acct.Balance,
				acct.Currency, acct.Status, acct.Version, acct.CreatedAt, acct.UpdatedAt))

	result, err := repo.FindByNumber(ctx, "1234567890")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, result.ID)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindAccountsByCustomerID(t *testing.T) {
	ctx, repo, mockPool := setupAccountRepo(t)
	defer mockPool.Close()

	acct := testAccount()
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE customer_id = $1 ORDER BY id ASC`

	mockPool.ExpectQuery(regexp.QuoteMeta(query)).WithArgs(acct.CustomerID).
		WillReturnRows(pgxmock.NewRows(accountColumnNames).
			AddRow(acct.ID, acct.AccountNumber, acct.CustomerID, acct.Type, acct.Balance,
				acct.Currency, acct.Status, acct.Version, acct.CreatedAt, acct.UpdatedAt))

	result, err := repo.FindByCustomerID(ctx, acct.CustomerID)
	require.NoError(t, err)
	assert.Len(t, result, 1)
	assert.Equal(t, acct.AccountNumber, result[0].AccountNumber)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestSummarizeBalances(t *testing.T) {
	ctx, repo, mockPool := setupAccountRepo(t)
	defer mockPool.Close()

	query := `
        SELECT currency, status, COUNT(*), COALESCE(SUM(balance), 0)
        FROM accounts
        GROUP BY currency, status
        ORDER BY currency, status`

	mockPool.ExpectQuery(regexp.QuoteMeta(query)).
		WillReturnRows(pgxmock.NewRows([]string{"currency", "status", "count", "coalesce"}).
			AddRow("USD", account.StatusActive, int64(2), decimal.NewFromInt(1500)).
			AddRow("USD", account.StatusClosed, int64(1), decimal.Zero))

	result, err := repo.SummarizeBalances(ctx)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "USD", result[0].Currency)
	assert.Equal(t, account.StatusActive, result[0].Status)
	assert.Equal(t, int64(2), result[0].AccountCount)
	assert.True(t, decimal.NewFromInt(1500).Equal(result[0].TotalBalance))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}
