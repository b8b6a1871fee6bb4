package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPoolRunsSeededTasks(t *testing.T) {
	p := NewPool(4, 0)
	var ran atomic.Int32
	for i := 0; i < 50; i++ {
		p.Go(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}
	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, int32(50), ran.Load())
}

func TestPoolTaskCanSubmitFollowOnWork(t *testing.T) {
	p := NewPool(2, 0)
	var ran atomic.Int32
	var seed Task
	seed = func(ctx context.Context) error {
		if ran.Add(1) < 10 {
			p.Go(seed)
		}
		return nil
	}
	p.Go(seed)
	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, int32(10), ran.Load())
}

func TestPoolPropagatesFirstError(t *testing.T) {
	p := NewPool(4, 0)
	wantErr := errors.New("recipe failed")
	p.Go(func(ctx context.Context) error { return wantErr })
	for i := 0; i < 10; i++ {
		p.Go(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
	}
	err := p.Run(context.Background())
	require.Error(t, err)
}

func TestPoolProcessSlotBoundsConcurrency(t *testing.T) {
	p := NewPool(8, 2)
	var cur, max atomic.Int32
	for i := 0; i < 20; i++ {
		p.Go(func(ctx context.Context) error {
			require.NoError(t, p.AcquireProcessSlot(ctx))
			defer p.ReleaseProcessSlot()
			n := cur.Add(1)
			for {
				m := max.Load()
				if n <= m || max.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			cur.Add(-1)
			return nil
		})
	}
	require.NoError(t, p.Run(context.Background()))
	assert.LessOrEqual(t, max.Load(), int32(2))
}

func TestArbiterLoadIsExclusive(t *testing.T) {
	a := NewArbiter()
	assert.Equal(t, PhaseLoad, a.Phase())
	a.Enter(PhaseLoad)
	a.Leave()
	a.Advance(PhaseMatch)
	assert.Equal(t, PhaseMatch, a.Phase())
}

func TestArbiterAdvanceWaitsForActiveWorkers(t *testing.T) {
	a := NewArbiter()
	a.Advance(PhaseMatch)
	a.Enter(PhaseMatch)

	advanced := make(chan struct{})
	go func() {
		a.Advance(PhaseExecute)
		close(advanced)
	}()

	select {
	case <-advanced:
		t.Fatal("Advance returned while a worker was still active in the phase")
	case <-time.After(20 * time.Millisecond):
	}

	a.Leave()
	select {
	case <-advanced:
	case <-time.After(time.Second):
		t.Fatal("Advance did not unblock after the last worker left")
	}
	assert.Equal(t, PhaseExecute, a.Phase())
}

func TestArbiterEnterBlocksUntilPhaseReached(t *testing.T) {
	a := NewArbiter()
	entered := make(chan struct{})
	go func() {
		a.Enter(PhaseExecute)
		close(entered)
		a.Leave()
	}()

	select {
	case <-entered:
		t.Fatal("Enter returned before the context reached PhaseExecute")
	case <-time.After(20 * time.Millisecond):
	}

	a.Advance(PhaseMatch)
	a.Advance(PhaseExecute)
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("Enter never unblocked once the phase advanced")
	}
}
