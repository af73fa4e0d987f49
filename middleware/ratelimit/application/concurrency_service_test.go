package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sliding-gateway/middleware/ratelimit/domain"
)

// blockingPool só libera quando o ctx encerra.
type blockingPool struct{}

func (blockingPool) Acquire(ctx context.Context) (func(), bool) {
	<-ctx.Done()
	return nil, false
}

type countingPool struct {
	acquired int
}

func (p *countingPool) Acquire(ctx context.Context) (func(), bool) {
	p.acquired++
	return func() {}, true
}

func TestConcurrencyService_Acquire_AllowsWhenNoPool(t *testing.T) {
	release, err := ConcurrencyService{}.Acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestConcurrencyService_Acquire_TimeoutReturnsErrNoSlot(t *testing.T) {
	svc := ConcurrencyService{Pool: blockingPool{}, AcquireTimeout: 10 * time.Millisecond}

	_, err := svc.Acquire(context.Background())
	require.ErrorIs(t, err, domain.ErrNoSlot)
}

func TestConcurrencyService_Acquire_CallerCancelReturnsCtxErr(t *testing.T) {
	svc := ConcurrencyService{Pool: blockingPool{}, AcquireTimeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestConcurrencyService_Acquire_NoTimeoutDelegatesToPool(t *testing.T) {
	pool := &countingPool{}
	svc := ConcurrencyService{Pool: pool}

	_, err := svc.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, pool.acquired)
}
