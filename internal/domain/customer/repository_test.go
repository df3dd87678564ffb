package customer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Save(ctx context.Context, cust *Customer) error {
	args := m.Called(ctx, cust)
	return args.Error(0)
}

func (m *MockRepository) FindByID(ctx context.Context, customerID int64) (*Customer, error) {
	args := m.Called(ctx, customerID)

	var r0 *Customer
	if args.Get(0) != nil {
		r0 = args.Get(0).(*Customer)
	}
	return r0, args.Error(1)
}

func (m *MockRepository) FindByEmail(ctx context.Context, email string) (*Customer, error) {
	args := m.Called(ctx, email)

	var r0 *Customer
	if args.Get(0) != nil {
		r0 = args.Get(0).(*Customer)
	}
	return r0, args.Error(1)
}

func (m *MockRepository) FindAll(ctx context.Context) ([]*Customer, error) {
	args := m.Called(ctx)

	var r0 []*Customer
	if args.Get(0) != nil {
		r0 = args.Get(0).([]*Customer)
	}
	return r0, args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, customerID int64) error {
	args := m.Called(ctx, customerID)
	return args.Error(0)
}

func TestRepository_Save(t *testing.T) {
	mockRepo := new(MockRepository)
	ctx := context.Background()
	cust := &Customer{FirstName: "John", LastName: "Doe"}

	mockRepo.On("Save", ctx, cust).Return(nil)

	err := mockRepo.Save(ctx, cust)
	require.NoError(t, err)

	mockRepo.AssertExpectations(t)
}

func TestRepository_FindByID(t *testing.T) {
	mockRepo := new(MockRepository)
	ctx := context.Background()
	expected := &Customer{CustomerID: 1}

	mockRepo.On("FindByID", ctx, int64(1)).Return(expected, nil)

	result, err := mockRepo.FindByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, expected, result)

	mockRepo.AssertExpectations(t)
}

func TestRepository_FindByEmail(t *testing.T) {
	mockRepo := new(MockRepository)
	ctx := context.Background()

	mockRepo.On("FindByEmail", ctx, "nobody@example.com").Return(nil, ErrNotFound)

	result, err := mockRepo.FindByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, result)

	mockRepo.AssertExpectations(t)
}

func TestRepository_Delete(t *testing.T) {
	mockRepo := new(MockRepository)
	ctx := context.Background()

	mockRepo.On("Delete", ctx, int64(1)).Return(ErrHasOpenAccounts)

	err := mockRepo.Delete(ctx, 1)
	require.ErrorIs(t, err, ErrHasOpenAccounts)

	mockRepo.AssertExpectations(t)
}
