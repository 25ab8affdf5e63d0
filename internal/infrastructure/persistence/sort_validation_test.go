package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "DESC"},
		{"ASC", "ASC"},
		{"  asc  ", "ASC"},
		{"desc", "DESC"},
		{"ASC; DROP TABLE orders;--", "DESC"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortOrder(tt.input))
		})
	}
}

func TestValidateSortField(t *testing.T) {
	assert.Equal(t, "total_value", ValidateSortField("total_value", OrderSortFields, "updated_at"))
	assert.Equal(t, "created_at", ValidateSortField(" created_at ", OrderSortFields, "updated_at"))
	assert.Equal(t, "updated_at", ValidateSortField("", OrderSortFields, "updated_at"))
	assert.Equal(t, "updated_at", ValidateSortField("customer_email", OrderSortFields, "updated_at"))
	assert.Equal(t, "updated_at", ValidateSortField("id; DROP TABLE orders", OrderSortFields, "updated_at"))
}
