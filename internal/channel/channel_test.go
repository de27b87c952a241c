package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChannel(t *testing.T, cfg Config, hooks Hooks) *Channel {
	t.Helper()
	ch, err := New(cfg, hooks)
	require.NoError(t, err)
	require.NoError(t, ch.Start(context.Background()))
	t.Cleanup(func() { _ = ch.Stop(context.Background()) })
	return ch
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{MaxSize: 0, AckTimeout: time.Second, RetryLimit: 3}, Hooks{})
	assert.Error(t, err)

	_, err = New(Config{MaxSize: 1, AckTimeout: 0, RetryLimit: 3}, Hooks{})
	assert.Error(t, err)

	_, err = New(Config{MaxSize: 1, AckTimeout: time.Second, RetryLimit: -1}, Hooks{})
	assert.Error(t, err)
}

// TestPutGetAck covers the happy path: a message that is acked never
// redelivers.
func TestPutGetAck(t *testing.T) {
	ch := newTestChannel(t, Config{MaxSize: 10, AckTimeout: time.Second, RetryLimit: 3}, Hooks{})
	ctx := context.Background()

	require.NoError(t, ch.Put(ctx, "hello"))
	tok, payload, err := ch.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", payload)
	assert.NoError(t, ch.Ack(tok))
}

// TestAckUnknownToken covers the unknown-token lookup error.
func TestAckUnknownToken(t *testing.T) {
	ch := newTestChannel(t, Config{MaxSize: 10, AckTimeout: time.Second, RetryLimit: 3}, Hooks{})
	err := ch.Ack(Token{})
	assert.Error(t, err)
}

// TestNackRequeuesUntilRetryLimit: a message nacked repeatedly is
// redelivered up to retry_limit+1 times total, then permanently
// dropped.
func TestNackRequeuesUntilRetryLimit(t *testing.T) {
	var retries, drops int32
	ch := newTestChannel(t, Config{MaxSize: 10, AckTimeout: time.Minute, RetryLimit: 2}, Hooks{
		OnRetry:         func() { atomic.AddInt32(&retries, 1) },
		OnPermanentDrop: func() { atomic.AddInt32(&drops, 1) },
	})
	ctx := context.Background()
	require.NoError(t, ch.Put(ctx, "msg"))

	var gets int
	for {
		tok, _, err := ch.Get(ctx)
		require.NoError(t, err)
		gets++
		if err := ch.Nack(tok, true); err != nil {
			t.Fatalf("nack: %v", err)
		}
		if gets >= 3 {
			break
		}
	}
	assert.Equal(t, 3, gets) // retry_limit(2) + 1 initial attempt
	assert.Equal(t, int32(2), atomic.LoadInt32(&retries))
	assert.Equal(t, int32(1), atomic.LoadInt32(&drops))
}

// TestRetryLimitZeroDropsImmediately: retry_limit = 0 means one
// delivery attempt, no retries.
func TestRetryLimitZeroDropsImmediately(t *testing.T) {
	var drops int32
	ch := newTestChannel(t, Config{MaxSize: 10, AckTimeout: time.Minute, RetryLimit: 0}, Hooks{
		OnPermanentDrop: func() { atomic.AddInt32(&drops, 1) },
	})
	ctx := context.Background()
	require.NoError(t, ch.Put(ctx, "msg"))
	tok, _, err := ch.Get(ctx)
	require.NoError(t, err)
	require.NoError(t, ch.Nack(tok, true))
	assert.Equal(t, int32(1), atomic.LoadInt32(&drops))
}

// TestMaxSizeOneBlocksPut: maxsize = 1 blocks a second Put until Get
// drains the first message.
func TestMaxSizeOneBlocksPut(t *testing.T) {
	ch := newTestChannel(t, Config{MaxSize: 1, AckTimeout: time.Minute, RetryLimit: 3}, Hooks{})
	ctx := context.Background()
	require.NoError(t, ch.Put(ctx, "first"))

	putDone := make(chan struct{})
	go func() {
		_ = ch.Put(ctx, "second")
		close(putDone)
	}()

	select {
	case <-putDone:
		t.Fatal("second Put should have blocked while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	_, _, err := ch.Get(ctx)
	require.NoError(t, err)

	select {
	case <-putDone:
	case <-time.After(time.Second):
		t.Fatal("second Put did not unblock after Get drained the queue")
	}
}

// TestAckTimeoutRequeues: an un-acked message is requeued by the
// watchdog once per ack_timeout window, with attempts incrementing each
// redelivery, bounded by retry_limit.
func TestAckTimeoutRequeues(t *testing.T) {
	ch := newTestChannel(t, Config{MaxSize: 10, AckTimeout: 50 * time.Millisecond, RetryLimit: 2}, Hooks{})
	ctx := context.Background()
	require.NoError(t, ch.Put(ctx, "msg"))

	_, _, err := ch.Get(ctx) // attempt 1, never acked
	require.NoError(t, err)

	getCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	_, _, err = ch.Get(getCtx) // attempt 2, via watchdog requeue
	require.NoError(t, err)

	getCtx2, cancel2 := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel2()
	_, _, err = ch.Get(getCtx2) // attempt 3, via watchdog requeue again
	require.NoError(t, err)
}

// TestCloseDiscardsInFlightAndQueued: Close discards every queued and
// in-flight message without retry, and post-close Ack/Nack are not
// errors.
func TestCloseDiscardsInFlightAndQueued(t *testing.T) {
	ch, err := New(Config{MaxSize: 10, AckTimeout: time.Minute, RetryLimit: 3}, Hooks{})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, ch.Start(ctx))
	t.Cleanup(func() { _ = ch.Stop(ctx) })

	require.NoError(t, ch.Put(ctx, "a"))
	require.NoError(t, ch.Put(ctx, "b"))
	tok, _, err := ch.Get(ctx)
	require.NoError(t, err)

	ch.Close()

	assert.NoError(t, ch.Ack(tok))
	assert.NoError(t, ch.Nack(tok, true))

	_, _, err = ch.Get(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	err = ch.Put(ctx, "c")
	assert.ErrorIs(t, err, ErrClosed)
}

// TestBackpressureNoDrops: a full channel blocks Put rather than
// dropping, and every enqueued message is eventually delivered.
func TestBackpressureNoDrops(t *testing.T) {
	ch := newTestChannel(t, Config{MaxSize: 1, AckTimeout: time.Minute, RetryLimit: 3}, Hooks{})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		require.NoError(t, ch.Put(ctx, 1))
		require.NoError(t, ch.Put(ctx, 2))
	}()

	var delivered []any
	for len(delivered) < 2 {
		tok, payload, err := ch.Get(ctx)
		require.NoError(t, err)
		delivered = append(delivered, payload)
		require.NoError(t, ch.Ack(tok))
	}
	wg.Wait()
	assert.Equal(t, []any{1, 2}, delivered)
}
