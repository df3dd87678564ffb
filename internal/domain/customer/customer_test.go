package customer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCustomer(t *testing.T) {
	cust := NewCustomer("John", "Doe", "john@example.com", "1234567890")

	assert.Equal(t, int64(0), cust.CustomerID)
	assert.Equal(t, "John", cust.FirstName)
	assert.Equal(t, "Doe", cust.LastName)
	assert.Equal(t, "john@example.com", cust.Email)
	assert.Equal(t, "1234567890", cust.Phone)
	assert.False(t, cust.CreatedAt.IsZero())
	assert.Equal(t, cust.CreatedAt, cust.UpdatedAt)
}

func TestDisplayName(t *testing.T) {
	cust := NewCustomer("Jane", "Smith", "jane@example.com", "0987654321")
	assert.Equal(t, "Jane Smith", cust.DisplayName())
}
