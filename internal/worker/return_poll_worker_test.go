package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyfinance/ach-engine/internal/orders"
	"github.com/greyfinance/ach-engine/internal/repository"
	"github.com/greyfinance/ach-engine/internal/service"
	"github.com/greyfinance/ach-engine/internal/transport"
)

// slowClient stalls the directory listing so a poll is still in flight when
// the worker is told to stop.
type slowClient struct {
	delay    time.Duration
	finished atomic.Bool
}

var _ transport.Client = (*slowClient)(nil)

func (c *slowClient) List(ctx context.Context, remoteDir string) ([]string, error) {
	time.Sleep(c.delay)
	c.finished.Store(true)
	return nil, nil
}

func (c *slowClient) Upload(ctx context.Context, remotePath string, data []byte) error { return nil }
func (c *slowClient) Download(ctx context.Context, remotePath string) ([]byte, error) { return nil, nil }
func (c *slowClient) Rename(ctx context.Context, oldPath, newPath string) error       { return nil }
func (c *slowClient) Close() error                                                    { return nil }

func newWorkerService(client transport.Client) *service.ReconciliationService {
	return service.NewReconciliationService(
		repository.NewMemoryStore(),
		client,
		orders.NewMockGateway(),
		service.ReconciliationConfig{ReturnDir: "returns", SettlementWindow: 72 * time.Hour},
	)
}

func TestReturnPollWorker_StopWaitsForInFlightRun(t *testing.T) {
	client := &slowClient{delay: 50 * time.Millisecond}
	w := NewReturnPollWorker(newWorkerService(client)).WithInterval(time.Hour)

	stop := w.Run(context.Background())
	stop()

	// Stop must not return while the startup poll is still running.
	assert.True(t, client.finished.Load())
}

func TestReturnPollWorker_StopIsIdempotent(t *testing.T) {
	client := &slowClient{}
	w := NewReturnPollWorker(newWorkerService(client)).WithInterval(time.Hour)

	stop := w.Run(context.Background())
	stop()
	w.Stop()
}

func TestReturnPollWorker_DefaultInterval(t *testing.T) {
	w := NewReturnPollWorker(newWorkerService(&slowClient{}))
	require.Equal(t, time.Hour, w.interval)

	w.WithInterval(0)
	assert.Equal(t, time.Hour, w.interval)

	w.WithInterval(time.Minute)
	assert.Equal(t, time.Minute, w.interval)
}
