// Package channel implements the reliability channel: a bounded FIFO
// queue between a flow's parse and write stages, with delivery tokens,
// ack/nack, and timeout-driven at-least-once redelivery bounded by a
// retry limit.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrClosed is returned by Put and Get once the channel has been
// closed. Ack and Nack after close are deliberately not errors: the
// message is already gone.
var ErrClosed = errors.New("channel: closed")

// Config describes one channel's sizing and retry policy.
type Config struct {
	MaxSize    int
	AckTimeout time.Duration
	RetryLimit int
}

// DefaultConfig returns the sizing and retry defaults applied to
// channels that are referenced but never declared.
func DefaultConfig() Config {
	return Config{MaxSize: 1000, AckTimeout: 30 * time.Second, RetryLimit: 3}
}

type message struct {
	id          uint64
	token       Token
	payload     any
	attempts    int
	lastAttempt time.Time
}

// Hooks lets the caller observe retry and permanent-drop events without
// the channel needing to know about flow or channel names itself.
type Hooks struct {
	OnRetry         func()
	OnPermanentDrop func()
}

// Channel is a bounded, in-memory, at-least-once delivery queue.
type Channel struct {
	cfg   Config
	hooks Hooks

	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	queue    []*message
	inFlight map[uint64]*message
	nextID   uint64
	closed   bool

	watchdogDone chan struct{}
	watchdogStop chan struct{}
	stopOnce     sync.Once
}

// New constructs a Channel; Start must be called before Put/Get so the
// redelivery watchdog is running.
func New(cfg Config, hooks Hooks) (*Channel, error) {
	if cfg.MaxSize <= 0 {
		return nil, fmt.Errorf("channel: maxsize must be positive, got %d", cfg.MaxSize)
	}
	if cfg.AckTimeout <= 0 {
		return nil, fmt.Errorf("channel: ack_timeout must be positive, got %s", cfg.AckTimeout)
	}
	if cfg.RetryLimit < 0 {
		return nil, fmt.Errorf("channel: retry_limit must be non-negative, got %d", cfg.RetryLimit)
	}
	c := &Channel{
		cfg:      cfg,
		hooks:    hooks,
		inFlight: make(map[uint64]*message),
	}
	c.notEmpty = sync.NewCond(&c.mu)
	c.notFull = sync.NewCond(&c.mu)
	return c, nil
}

// Start launches the redelivery watchdog.
func (c *Channel) Start(ctx context.Context) error {
	c.watchdogDone = make(chan struct{})
	c.watchdogStop = make(chan struct{})
	go c.watchdog()
	return nil
}

// Stop closes the channel and waits for the watchdog to exit. Safe to
// call more than once.
func (c *Channel) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() {
		c.Close()
		if c.watchdogStop != nil {
			close(c.watchdogStop)
		}
		if c.watchdogDone != nil {
			<-c.watchdogDone
		}
	})
	return nil
}

// Put enqueues a new message, blocking cooperatively while the queue is
// at MaxSize.
func (c *Channel) Put(ctx context.Context, payload any) error {
	return c.waitFor(ctx, c.notFull, func() bool {
		return c.closed || len(c.queue) < c.cfg.MaxSize
	}, func() error {
		if c.closed {
			return ErrClosed
		}
		c.nextID++
		c.queue = append(c.queue, &message{id: c.nextID, payload: payload})
		c.notEmpty.Signal()
		return nil
	})
}

// Get removes the message at the head of the queue, marks it in-flight,
// and returns its delivery token and payload. Blocks while the queue is
// empty.
func (c *Channel) Get(ctx context.Context) (Token, any, error) {
	var tok Token
	var payload any
	err := c.waitFor(ctx, c.notEmpty, func() bool {
		return c.closed || len(c.queue) > 0
	}, func() error {
		if len(c.queue) == 0 {
			return ErrClosed
		}
		m := c.queue[0]
		c.queue = c.queue[1:]
		m.attempts++
		m.lastAttempt = time.Now()
		m.token = newToken(m.id)
		c.inFlight[m.id] = m
		tok = m.token
		payload = m.payload
		c.notFull.Signal()
		return nil
	})
	return tok, payload, err
}

// Ack removes the message from the in-flight map. An Ack after close is
// not an error since the message is already gone.
func (c *Channel) Ack(token Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if _, ok := c.inFlight[token.id]; !ok {
		return fmt.Errorf("channel: ack: unknown token %s", token)
	}
	delete(c.inFlight, token.id)
	return nil
}

// Nack removes the message from the in-flight map and, if requeue is
// true and the message has not exhausted its retry limit, re-enqueues it
// at the tail. Otherwise the message is permanently dropped. A Nack
// after close is a no-op.
func (c *Channel) Nack(token Token, requeue bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	m, ok := c.inFlight[token.id]
	if !ok {
		return fmt.Errorf("channel: nack: unknown token %s", token)
	}
	delete(c.inFlight, m.id)
	if requeue && m.attempts <= c.cfg.RetryLimit {
		c.queue = append(c.queue, m)
		c.notEmpty.Signal()
		if c.hooks.OnRetry != nil {
			c.hooks.OnRetry()
		}
	} else if c.hooks.OnPermanentDrop != nil {
		c.hooks.OnPermanentDrop()
	}
	return nil
}

// Close marks the channel closed, cancels the watchdog's effect on
// future ticks, and discards all queued and in-flight messages without
// retry.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.queue = nil
	c.inFlight = make(map[uint64]*message)
	c.notEmpty.Broadcast()
	c.notFull.Broadcast()
}

// waitFor blocks on cond until check() is true or ctx is cancelled, then
// runs action while still holding the lock.
func (c *Channel) waitFor(ctx context.Context, cond *sync.Cond, check func() bool, action func() error) error {
	cancelled := make(chan struct{})
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			close(cancelled)
			cond.Broadcast()
			c.mu.Unlock()
		case <-stop:
		}
	}()
	defer close(stop)

	c.mu.Lock()
	defer c.mu.Unlock()
	for !check() {
		select {
		case <-cancelled:
			return ctx.Err()
		default:
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		cond.Wait()
	}
	return action()
}

// watchdog wakes every AckTimeout/2 and requeues or permanently drops
// in-flight messages that have exceeded AckTimeout without an ack/nack.
func (c *Channel) watchdog() {
	defer close(c.watchdogDone)
	interval := c.cfg.AckTimeout / 2
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.watchdogStop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Channel) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	now := time.Now()
	for id, m := range c.inFlight {
		if now.Sub(m.lastAttempt) < c.cfg.AckTimeout {
			continue
		}
		delete(c.inFlight, id)
		if m.attempts <= c.cfg.RetryLimit {
			c.queue = append(c.queue, m)
			if c.hooks.OnRetry != nil {
				c.hooks.OnRetry()
			}
		} else if c.hooks.OnPermanentDrop != nil {
			c.hooks.OnPermanentDrop()
		}
	}
	if len(c.queue) > 0 {
		c.notEmpty.Broadcast()
	}
}
