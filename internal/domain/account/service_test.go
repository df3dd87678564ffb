package account

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"account-service/internal/domain/customer"
	"account-service/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, nil))

type MockCustomerService struct {
	mock.Mock
}

func (_m *MockCustomerService) CreateCustomer(ctx context.Context, firstName, lastName, email, phone string) (*customer.Customer, error) {
	ret := _m.Called(ctx, firstName, lastName, email, phone)

	var r0 *customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*customer.Customer)
	}
	return r0, ret.Error(1)
}

func (_m *MockCustomerService) GetCustomer(ctx context.Context, customerID int64) (*customer.Customer, error) {
	ret := _m.Called(ctx, customerID)

	var r0 *customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*customer.Customer)
	}
	return r0, ret.Error(1)
}

func (_m *MockCustomerService) ListCustomers(ctx context.Context) ([]*customer.Customer, error) {
	ret := _m.Called(ctx)

	var r0 []*customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*customer.Customer)
	}
	return r0, ret.Error(1)
}

func (_m *MockCustomerService) DeleteCustomer(ctx context.Context, customerID int64) error {
	ret := _m.Called(ctx, customerID)
	return ret.Error(0)
}

var johnDoe = &customer.Customer{
	CustomerID: 1,
	FirstName:  "John",
	LastName:   "Doe",
	Email:      "john@example.com",
	Phone:      "1234567890",
}

func newTestService(repo Repository, customers customer.Service) Service {
	return NewService(repo, customers, nil, decimal.Zero, logger)
}

func TestCreateAccount(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomers := new(MockCustomerService)
	service := newTestService(mockRepo, mockCustomers)

	ctx := context.Background()
	mockCustomers.On("GetCustomer", ctx, int64(1)).Return(johnDoe, nil)
	mockRepo.On("Create", ctx, mock.AnythingOfType("*account.Account")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*Account).ID = 7
		}).
		Return(nil)

	acct, err := service.CreateAccount(ctx, 1, "1234567890", TypeSavings, decimal.NewFromInt(1000), "USD")

	require.NoError(t, err)
	assert.Equal(t, int64(7), acct.ID)
	assert.Equal(t, "1234567890", acct.AccountNumber)
	assert.Equal(t, StatusActive, acct.Status)
	mockRepo.AssertExpectations(t)
	mockCustomers.AssertExpectations(t)
}

func TestCreateAccountCustomerNotFound(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomers := new(MockCustomerService)
	service := newTestService(mockRepo, mockCustomers)

	ctx := context.Background()
	mockCustomers.On("GetCustomer", ctx, int64(99)).Return(nil, customer.ErrNotFound)

	_, err := service.CreateAccount(ctx, 99, "1234567890", TypeSavings, decimal.Zero, "USD")

	assert.ErrorIs(t, err, customer.ErrNotFound)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateAccountNumberTaken(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomers := new(MockCustomerService)
	service := newTestService(mockRepo, mockCustomers)

	ctx := context.Background()
	mockCustomers.On("GetCustomer", ctx, int64(1)).Return(johnDoe, nil)
	mockRepo.On("Create", ctx, mock.AnythingOfType("*account.Account")).Return(ErrAccountNumberTaken)

	_, err := service.CreateAccount(ctx, 1, "1234567890", TypeChecking, decimal.Zero, "USD")

	assert.ErrorIs(t, err, ErrAccountNumberTaken)
	mockRepo.AssertExpectations(t)
}

func TestCreateAccountRejectsInvalidInput(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomers := new(MockCustomerService)
	service := newTestService(mockRepo, mockCustomers)

	ctx := context.Background()
	mockCustomers.On("GetCustomer", ctx, int64(1)).Return(johnDoe, nil)

	_, err := service.CreateAccount(ctx, 1, "1234567890", TypeSavings, decimal.NewFromInt(-100), "USD")

	assert.ErrorIs(t, err, ErrInvalidState)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGetAccountByID(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomers := new(MockCustomerService)
	service := newTestService(mockRepo, mockCustomers)

	ctx := context.Background()
	stored := &Account{
		ID:            7,
		AccountNumber: "1234567890",
		CustomerID:    1,
		Type:          TypeSavings,
		Balance:       decimal.NewFromInt(1000),
		Currency:      "USD",
		Status:        StatusActive,
	}
	mockRepo.On("FindByID", ctx, int64(7)).Return(stored, nil)
	mockCustomers.On("GetCustomer", ctx, int64(1)).Return(johnDoe, nil)

	result, err := service.GetAccountByID(ctx, 7)

	require.NoError(t, err)
	assert.Equal(t, int64(7), result.ID)
	assert.Equal(t, "John Doe", result.CustomerName)
	assert.Equal(t, "1000.00", result.Balance.StringFixed(2))
	mockRepo.AssertExpectations(t)
}

func TestGetAccountByIDNotFound(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomers := new(MockCustomerService)
	service := newTestService(mockRepo, mockCustomers)

	ctx := context.Background()
	mockRepo.On("FindByID", ctx, int64(404)).Return(nil, ErrNotFound)

	_, err := service.GetAccountByID(ctx, 404)

	assert.ErrorIs(t, err, ErrNotFound)
	mockRepo.AssertExpectations(t)
}

func TestGetAccountByNumber(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomers := new(MockCustomerService)
	service := newTestService(mockRepo, mockCustomers)

	ctx := context.Background()
	janeSmith := &customer.Customer{CustomerID: 2, FirstName: "Jane", LastName: "Smith"}
	stored := &Account{
		ID:            8,
		AccountNumber: "9876543210",
		CustomerID:    2,
		Type:          TypeChecking,
		Balance:       decimal.NewFromInt(500),
		Currency:      "USD",
		Status:        StatusActive,
	}
	mockRepo.On("FindByNumber", ctx, "9876543210").Return(stored, nil)
	mockCustomers.On("GetCustomer", ctx, int64(2)).Return(janeSmith, nil)

	result, err := service.GetAccountByNumber(ctx, "9876543210")

	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", result.CustomerName)
	assert.Equal(t, TypeChecking, result.Type)
	mockRepo.AssertExpectations(t)
}

func TestListCustomerAccounts(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomers := new(MockCustomerService)
	service := newTestService(mockRepo, mockCustomers)

	ctx := context.Background()
	expected := []*Account{{ID: 7}, {ID: 8}}
	mockCustomers.On("GetCustomer", ctx, int64(1)).Return(johnDoe, nil)
	mockRepo.On("FindByCustomerID", ctx, int64(1)).Return(expected, nil)

	result, err := service.ListCustomerAccounts(ctx, 1)

	require.NoError(t, err)
	assert.Equal(t, expected, result)
	mockRepo.AssertExpectations(t)
}

func TestAdjustBalance(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomers := new(MockCustomerService)
	service := newTestService(mockRepo, mockCustomers)

	ctx := context.Background()
	stored := &Account{ID: 7, AccountNumber: "1234567890", Type: TypeSavings, Balance: decimal.NewFromInt(1000), Status: StatusActive, Version: 3}
	mockRepo.On("FindByID", ctx, int64(7)).Return(stored, nil)
	mockRepo.On("Update", ctx, mock.AnythingOfType("*account.Account")).Return(nil)

	acct, err := service.AdjustBalance(ctx, 7, decimal.RequireFromString("-25.00"))

	require.NoError(t, err)
	assert.Equal(t, "975.00", acct.Balance.StringFixed(2))
	mockRepo.AssertExpectations(t)
}

func TestAdjustBalanceRejectsZeroDelta(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomers := new(MockCustomerService)
	service := newTestService(mockRepo, mockCustomers)

	_, err := service.AdjustBalance(context.Background(), 7, decimal.Zero)

	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	mockRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestAdjustBalanceInsufficientFunds(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomers := new(MockCustomerService)
	service := newTestService(mockRepo, mockCustomers)

	ctx := context.Background()
	stored := &Account{ID: 7, Type: TypeSavings, Balance: decimal.NewFromInt(10), Status: StatusActive}
	mockRepo.On("FindByID", ctx, int64(7)).Return(stored, nil)

	_, err := service.AdjustBalance(ctx, 7, decimal.NewFromInt(-20))

	assert.ErrorIs(t, err, ErrInsufficientFunds)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestAdjustBalanceRetriesOnStaleVersion(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomers := new(MockCustomerService)
	service := newTestService(mockRepo, mockCustomers)

	ctx := context.Background()
	// Each attempt loads a fresh row; the second load carries the version
	// bumped by the competing writer.
	mockRepo.On("FindByID", ctx, int64(7)).
		Return(&Account{ID: 7, Type: TypeSavings, Balance: decimal.NewFromInt(100), Status: StatusActive, Version: 1}, nil).Once()
	mockRepo.On("FindByID", ctx, int64(7)).
		Return(&Account{ID: 7, Type: TypeSavings, Balance: decimal.NewFromInt(150), Status: StatusActive, Version: 2}, nil).Once()
	mockRepo.On("Update", ctx, mock.AnythingOfType("*account.Account")).Return(ErrUpdateConflict).Once()
	mockRepo.On("Update", ctx, mock.AnythingOfType("*account.Account")).Return(nil).Once()

	acct, err := service.AdjustBalance(ctx, 7, decimal.NewFromInt(-50))

	require.NoError(t, err)
	assert.Equal(t, "100.00", acct.Balance.StringFixed(2), "retry must re-apply the delta to the fresh balance")
	mockRepo.AssertExpectations(t)
}

func TestAdjustBalanceGivesUpAfterRepeatedConflicts(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomers := new(MockCustomerService)
	service := newTestService(mockRepo, mockCustomers)

	ctx := context.Background()
	mockRepo.On("FindByID", ctx, int64(7)).
		Return(&Account{ID: 7, Type: TypeSavings, Balance: decimal.NewFromInt(100), Status: StatusActive}, nil).
		Times(maxWriteAttempts)
	mockRepo.On("Update", ctx, mock.AnythingOfType("*account.Account")).
		Return(ErrUpdateConflict).
		Times(maxWriteAttempts)

	_, err := service.AdjustBalance(ctx, 7, decimal.NewFromInt(1))

	assert.ErrorIs(t, err, ErrUpdateConflict)
	mockRepo.AssertExpectations(t)
}

func TestCloseAccount(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomers := new(MockCustomerService)
	service := newTestService(mockRepo, mockCustomers)

	ctx := context.Background()
	stored := &Account{ID: 7, AccountNumber: "1234567890", Type: TypeSavings, Balance: decimal.Zero, Status: StatusActive}
	mockRepo.On("FindByID", ctx, int64(7)).Return(stored, nil)
	mockRepo.On("Update", ctx, mock.AnythingOfType("*account.Account")).Return(nil)

	err := service.CloseAccount(ctx, 7)

	require.NoError(t, err)
	assert.Equal(t, StatusClosed, stored.Status)
	mockRepo.AssertExpectations(t)
}

func TestCloseAccountWithBalance(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomers := new(MockCustomerService)
	service := newTestService(mockRepo, mockCustomers)

	ctx := context.Background()
	stored := &Account{ID: 7, Type: TypeSavings, Balance: decimal.NewFromInt(500), Status: StatusActive}
	mockRepo.On("FindByID", ctx, int64(7)).Return(stored, nil)

	err := service.CloseAccount(ctx, 7)

	assert.ErrorIs(t, err, ErrInvalidTransition)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestCloseAccountAlreadyClosed(t *testing.T) {
	mockRepo := new(MockRepository)
	mockCustomers := new(MockCustomerService)
	service := newTestService(mockRepo, mockCustomers)

	ctx := context.Background()
	stored := &Account{ID: 7, Type: TypeSavings, Balance: decimal.Zero, Status: StatusClosed}
	mockRepo.On("FindByID", ctx, int64(7)).Return(stored, nil)

	err := service.CloseAccount(ctx, 7)

	assert.ErrorIs(t, err, ErrInvalidTransition)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

// versionedRepo is an in-memory Repository that enforces the same
// conditional-write contract as the real store: an Update carrying a
// stale version is rejected, never merged.
type versionedRepo struct {
	mu   sync.Mutex
	acct Account
}

func (r *versionedRepo) Create(ctx context.Context, acct *Account) error { return nil }

func (r *versionedRepo) FindByID(ctx context.Context, accountID int64) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := r.acct
	return &copied, nil
}

func (r *versionedRepo) Update(ctx context.Context, acct *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acct.Version != r.acct.Version {
		return ErrUpdateConflict
	}
	r.acct = *acct
	r.acct.Version++
	acct.Version++
	return nil
}

func (r *versionedRepo) FindByNumber(ctx context.Context, accountNumber string) (*Account, error) {
	return nil, ErrNotFound
}

func (r *versionedRepo) FindByCustomerID(ctx context.Context, customerID int64) ([]*Account, error) {
	return nil, nil
}

func (r *versionedRepo) SummarizeBalances(ctx context.Context) ([]BalanceSummary, error) {
	return nil, nil
}

func TestConcurrentAdjustmentsLoseNoUpdates(t *testing.T) {
	repo := &versionedRepo{acct: Account{
		ID:       7,
		Type:     TypeSavings,
		Balance:  decimal.NewFromInt(1000),
		Currency: "USD",
		Status:   StatusActive,
		Version:  1,
	}}
	mockCustomers := new(MockCustomerService)
	service := newTestService(repo, mockCustomers)

	const writers = 16
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.AdjustBalance(ctx, 7, decimal.NewFromInt(1))
			if err != nil {
				// Exhausting the bounded retries is an acceptable
				// outcome under contention; a lost update is not.
				assert.ErrorIs(t, err, ErrUpdateConflict)
				return
			}
			mu.Lock()
			applied++
			mu.Unlock()
		}()
	}
	wg.Wait()

	final, err := repo.FindByID(ctx, 7)
	require.NoError(t, err)
	expected := decimal.NewFromInt(1000 + int64(applied))
	assert.True(t, expected.Equal(final.Balance),
		"expected balance %s after %d applied adjustments, got %s", expected, applied, final.Balance)
	assert.Greater(t, applied, 0)
}
