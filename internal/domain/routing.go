package domain

import (
	"errors"
)

var (
	ErrInvalidRoutingNumber = errors.New("invalid routing number")
	ErrInvalidAccountNumber = errors.New("invalid account number")
)

// ValidateRoutingNumber checks an ABA routing transit number: exactly nine
// digits whose weighted checksum (weights 3, 7, 1 repeating) is divisible
// by 10.
func ValidateRoutingNumber(routing string) error {
	if len(routing) != 9 {
		return ErrInvalidRoutingNumber
	}
	weights := [9]int{3, 7, 1, 3, 7, 1, 3, 7, 1}
	sum := 0
	for i := 0; i < 9; i++ {
		c := routing[i]
		if c < '0' || c > '9' {
			return ErrInvalidRoutingNumber
		}
		sum += int(c-'0') * weights[i]
	}
	if sum == 0 || sum%10 != 0 {
		return ErrInvalidRoutingNumber
	}
	return nil
}

// ValidateAccountNumber checks a bank account number: 4 to 17 digits.
func ValidateAccountNumber(account string) error {
	if len(account) < 4 || len(account) > 17 {
		return ErrInvalidAccountNumber
	}
	for i := 0; i < len(account); i++ {
		if account[i] < '0' || account[i] > '9' {
			return ErrInvalidAccountNumber
		}
	}
	return nil
}

// DebitTransactionCode returns the NACHA transaction code for a debit
// against the given account type (27 checking, 37 savings).
func DebitTransactionCode(accountType string) (string, error) {
	switch accountType {
	case AccountTypeChecking:
		return "27", nil
	case AccountTypeSavings:
		return "37", nil
	default:
		return "", errors.New("unknown account type: " + accountType)
	}
}
