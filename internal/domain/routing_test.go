package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRoutingNumber(t *testing.T) {
	// Valid ABA numbers.
	assert.NoError(t, ValidateRoutingNumber("011000015"))
	assert.NoError(t, ValidateRoutingNumber("021000021"))
	assert.NoError(t, ValidateRoutingNumber("111000025"))

	// Nine digits but failing the weighted checksum.
	assert.ErrorIs(t, ValidateRoutingNumber("123456789"), ErrInvalidRoutingNumber)

	assert.ErrorIs(t, ValidateRoutingNumber("01100001"), ErrInvalidRoutingNumber)
	assert.ErrorIs(t, ValidateRoutingNumber("0110000155"), ErrInvalidRoutingNumber)
	assert.ErrorIs(t, ValidateRoutingNumber("01100001a"), ErrInvalidRoutingNumber)
	assert.ErrorIs(t, ValidateRoutingNumber("000000000"), ErrInvalidRoutingNumber)
	assert.ErrorIs(t, ValidateRoutingNumber(""), ErrInvalidRoutingNumber)
}

func TestValidateAccountNumber(t *testing.T) {
	assert.NoError(t, ValidateAccountNumber("1234"))
	assert.NoError(t, ValidateAccountNumber("12345678901234567"))

	assert.ErrorIs(t, ValidateAccountNumber("123"), ErrInvalidAccountNumber)
	assert.ErrorIs(t, ValidateAccountNumber("123456789012345678"), ErrInvalidAccountNumber)
	assert.ErrorIs(t, ValidateAccountNumber("12a4"), ErrInvalidAccountNumber)
}

func TestDebitTransactionCode(t *testing.T) {
	code, err := DebitTransactionCode(AccountTypeChecking)
	assert.NoError(t, err)
	assert.Equal(t, "27", code)

	code, err = DebitTransactionCode(AccountTypeSavings)
	assert.NoError(t, err)
	assert.Equal(t, "37", code)

	_, err = DebitTransactionCode("money-market")
	assert.Error(t, err)
}
