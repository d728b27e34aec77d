// Package orders is the boundary to the order management collaborator. The
// engine never decides which orders are ACH-eligible; it consumes the
// collaborator's eligible list and hands back explicit per-order outcomes.
package orders

import (
	"context"

	"github.com/greyfinance/ach-engine/internal/models"
)

// Gateway represents the hosting storefront's order management.
type Gateway interface {
	// EligibleOrders lists the orders approved for inclusion in the
	// next batch, with their encrypted bank-account references.
	EligibleOrders(ctx context.Context) ([]models.Order, error)

	// ApplyUpdate reports one order outcome back to order management:
	// accepted into a batch, rejected with a reason, returned with a
	// reason, or settled.
	ApplyUpdate(ctx context.Context, update models.OrderUpdate) error
}
