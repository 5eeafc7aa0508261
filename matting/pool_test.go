package matting

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/bgmatte/matte"
)

func TestPool_Matte(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := NewPool(ctx, 4)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			img := matte.FromImage(product(20, 20))
			out, report, err := pool.Matte(context.Background(), img, matte.Standard())
			assert.NoError(t, err)
			if assert.NotNil(t, report) {
				assert.Equal(t, 20*20-10*10, report.Transparent)
			}
			if assert.NotNil(t, out) {
				assert.Equal(t, 20, out.Width)
			}
		}()
	}
	wg.Wait()
}

func TestPool_CallerCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	release := make(chan struct{})
	defer close(release)

	pool := NewPool(ctx, 1)
	pool.run = blockingRun(release)

	callCtx, callCancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := pool.Matte(callCtx, matte.FromImage(product(4, 4)), matte.Standard())
		done <- err
	}()
	callCancel()
	assert.True(t, errors.Is(<-done, context.Canceled))
}

func TestPool_Closed(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 2)
	cancel()

	_, _, err := pool.Matte(context.Background(), matte.FromImage(product(4, 4)), matte.Standard())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPoolClosed), "got %v", err)
}
