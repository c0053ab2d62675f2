package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sitepulse/api/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLazyConnectsOnce(t *testing.T) {
	var calls int32
	l := NewLazy("test", func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return 42, nil
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := l.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLazyRetriesAfterFailure(t *testing.T) {
	fail := true
	l := NewLazy("flaky", func(context.Context) (string, error) {
		if fail {
			return "", errors.New("connection refused")
		}
		return "ok", nil
	}, nil)

	_, err := l.Get(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))
	assert.Contains(t, err.Error(), "connect flaky")

	fail = false
	v, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestLazyClose(t *testing.T) {
	var closed []int
	n := 0
	l := NewLazy("c", func(context.Context) (int, error) {
		n++
		return n, nil
	}, func(v int) error {
		closed = append(closed, v)
		return nil
	})

	require.NoError(t, l.Close())
	assert.Empty(t, closed)

	_, err := l.Get(context.Background())
	require.NoError(t, err)
	require.NoError(t, l.Close())
	assert.Equal(t, []int{1}, closed)

	v, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}
