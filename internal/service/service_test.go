package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/greyfinance/ach-engine/internal/crypto"
	"github.com/greyfinance/ach-engine/internal/models"
	"github.com/greyfinance/ach-engine/internal/nacha"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func testCipher(t *testing.T) *crypto.FieldCipher {
	t.Helper()
	c, err := crypto.NewFieldCipher(testKey)
	require.NoError(t, err)
	return c
}

func testFileParams() nacha.FileParams {
	return nacha.FileParams{
		ImmediateDestination: "021000021",
		ImmediateOrigin:      "1234567890",
		DestinationName:      "First Processor Bank",
		OriginName:           "Grey Finance",
		CompanyName:          "Grey Finance",
		CompanyID:            "1234567890",
		ODFIRouting:          "011000015",
		SECCode:              "PPD",
		EntryDescription:     "PAYMENT",
		FileIDModifier:       "A",
	}
}

// seedOrder builds an order with its bank fields encrypted the way the
// order management system stores them.
func seedOrder(t *testing.T, cipher *crypto.FieldCipher, routing, account, accountType string, amountCents int64, name string) models.Order {
	t.Helper()
	acctCipher, acctNonce, acctTag, err := cipher.Encrypt([]byte(account))
	require.NoError(t, err)
	routCipher, routNonce, routTag, err := cipher.Encrypt([]byte(routing))
	require.NoError(t, err)
	return models.Order{
		ID:           uuid.New(),
		AmountCents:  amountCents,
		CustomerName: name,
		BankAccount: models.BankAccount{
			AccountNumberCiphertext: acctCipher,
			AccountNonce:            acctNonce,
			AccountAuthTag:          acctTag,
			RoutingNumberCiphertext: routCipher,
			RoutingNonce:            routNonce,
			RoutingAuthTag:          routTag,
			AccountType:             accountType,
		},
	}
}

// failingClient fails every upload; the other operations are unused in the
// delivery failure paths.
type failingClient struct{}

func (failingClient) Upload(ctx context.Context, remotePath string, data []byte) error {
	return errors.New("connection reset by processor")
}

func (failingClient) List(ctx context.Context, remoteDir string) ([]string, error) {
	return nil, errors.New("not implemented")
}

func (failingClient) Download(ctx context.Context, remotePath string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (failingClient) Rename(ctx context.Context, oldPath, newPath string) error {
	return errors.New("not implemented")
}

func (failingClient) Close() error { return nil }

func fastDeliveryConfig(spoolDir string) DeliveryConfig {
	return DeliveryConfig{
		SpoolDir:       spoolDir,
		RemoteDir:      "outbound",
		MaxAttempts:    3,
		BackoffBase:    time.Millisecond,
		BackoffCap:     2 * time.Millisecond,
		AttemptTimeout: time.Second,
	}
}
