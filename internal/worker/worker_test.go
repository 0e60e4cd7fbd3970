package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitDeliversResult(t *testing.T) {
	w := New(4)
	go w.Run()
	defer w.Close()

	w.Submit(Request{
		ID:   "req-1",
		Kind: KindParseBuffer,
		Exec: func(ctx context.Context) (any, error) { return 42, nil },
	})

	resp := <-w.Results()
	assert.Equal(t, "req-1", resp.ID)
	assert.Equal(t, 42, resp.Result)
	assert.NoError(t, resp.Err)
}

func TestCancelPropagatesToExec(t *testing.T) {
	w := New(4)
	go w.Run()
	defer w.Close()

	started := make(chan struct{})
	w.Submit(Request{
		ID:   "req-2",
		Kind: KindParseBuffer,
		Exec: func(ctx context.Context) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	<-started
	w.Cancel("req-2")

	resp := <-w.Results()
	require.Error(t, resp.Err)
}

func TestCancelAllPropagatesToExec(t *testing.T) {
	w := New(4)
	go w.Run()
	defer w.Close()

	started := make(chan struct{})
	w.Submit(Request{
		ID:   "req-all",
		Kind: KindParseBuffer,
		Exec: func(ctx context.Context) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	<-started
	w.CancelAll()

	resp := <-w.Results()
	require.Error(t, resp.Err)
}

func TestBatchTimeoutScalesWithSize(t *testing.T) {
	assert.Equal(t, DefaultTimeout, BatchTimeout(1))
	assert.Equal(t, 2*DefaultTimeout, BatchTimeout(10))
}

// TestWorkerNeverEnforcesOwnDeadline confirms the worker does not impose a
// wall-clock limit of its own: a request with a short Timeout keeps running
// past it unless something calls Cancel. Timeout enforcement belongs to the
// caller (see beatparser.Parser.run).
func TestWorkerNeverEnforcesOwnDeadline(t *testing.T) {
	w := New(4)
	go w.Run()
	defer w.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	w.Submit(Request{
		ID:      "req-3",
		Kind:    KindParseBuffer,
		Timeout: 10 * time.Millisecond,
		Exec: func(ctx context.Context) (any, error) {
			close(started)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-release:
				return "ok", nil
			}
		},
	})

	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)

	resp := <-w.Results()
	require.NoError(t, resp.Err)
	assert.Equal(t, "ok", resp.Result)
}
