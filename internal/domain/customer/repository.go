package customer

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("customer not found")

	ErrDuplicateEmail = errors.New("email already registered to another customer")

	ErrDuplicatePhone = errors.New("phone number already registered to another customer")

	ErrHasOpenAccounts = errors.New("customer still has non-closed accounts")
)

type Repository interface {
	Save(ctx context.Context, customer *Customer) error

	FindByID(ctx context.Context, customerID int64) (*Customer, error)

	FindByEmail(ctx context.Context, email string) (*Customer, error)

	FindAll(ctx context.Context) ([]*Customer, error)

	// Delete refuses with ErrHasOpenAccounts while any non-closed
	// account still references the customer.
	Delete(ctx context.Context, customerID int64) error
}
