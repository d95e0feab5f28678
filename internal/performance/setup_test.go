package performance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/wesleyorama2/stampede/internal/scenario"
)

func TestSetupBarrier_ConcurrentWaitersShareOneCall(t *testing.T) {
	var calls atomic.Int32
	sc := &scenario.Scenario{
		Name: "s",
		Setup: func(ctx context.Context) (scenario.SharedContext, error) {
			calls.Add(1)
			time.Sleep(20 * time.Millisecond)
			return scenario.NewSharedContext(map[string]any{"token": "abc"}), nil
		},
	}
	barrier := NewSetupBarrier(sc, time.Second, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shared, err := barrier.Wait(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "abc", shared.String("token"))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.NoError(t, barrier.Err())
}

func TestSetupBarrier_NilSetup(t *testing.T) {
	barrier := NewSetupBarrier(&scenario.Scenario{Name: "s"}, time.Second, nil)

	shared, err := barrier.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, shared.Len())
}

func TestSetupBarrier_ErrorIsSetupError(t *testing.T) {
	cause := errors.New("401")
	barrier := NewSetupBarrier(&scenario.Scenario{
		Name: "auth",
		Setup: func(ctx context.Context) (scenario.SharedContext, error) {
			return scenario.SharedContext{}, cause
		},
	}, time.Second, zaptest.NewLogger(t))

	assert.NoError(t, barrier.Err(), "Err is nil before setup ran")

	_, err := barrier.Wait(context.Background())
	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, "auth", setupErr.Scenario)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, err, barrier.Err())
}

func TestSetupBarrier_Timeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	barrier := NewSetupBarrier(&scenario.Scenario{
		Name: "hangs",
		Setup: func(ctx context.Context) (scenario.SharedContext, error) {
			<-block // ignores ctx
			return scenario.SharedContext{}, nil
		},
	}, 50*time.Millisecond, zap.NewNop())

	start := time.Now()
	_, err := barrier.Wait(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSetupBarrier_WaitHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	barrier := NewSetupBarrier(&scenario.Scenario{
		Name: "slow",
		Setup: func(ctx context.Context) (scenario.SharedContext, error) {
			<-block
			return scenario.SharedContext{}, nil
		},
	}, time.Minute, zap.NewNop())

	barrier.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := barrier.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NoError(t, barrier.Err(), "setup is still running")
}
