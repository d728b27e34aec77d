package orders

import (
	"context"
	"sync"

	"github.com/greyfinance/ach-engine/internal/models"
)

// MockGateway simulates the order management collaborator for local runs
// and tests. Orders are seeded by hand; applied updates are retained for
// inspection.
type MockGateway struct {
	mu      sync.Mutex
	orders  []models.Order
	updates []models.OrderUpdate
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// Seed replaces the eligible order list.
func (g *MockGateway) Seed(orders ...models.Order) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders = append([]models.Order(nil), orders...)
}

func (g *MockGateway) EligibleOrders(ctx context.Context) ([]models.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.Order, len(g.orders))
	copy(out, g.orders)
	return out, nil
}

func (g *MockGateway) ApplyUpdate(ctx context.Context, update models.OrderUpdate) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updates = append(g.updates, update)
	return nil
}

// Updates returns every outcome applied so far.
func (g *MockGateway) Updates() []models.OrderUpdate {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.OrderUpdate, len(g.updates))
	copy(out, g.updates)
	return out
}
