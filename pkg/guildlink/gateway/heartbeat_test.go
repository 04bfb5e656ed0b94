package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type heartbeatFixture struct {
	hb *heartbeat

	mu      sync.Mutex
	now     time.Time
	lastAck time.Time
	sent    int
	sendErr error
	failed  error
}

func newHeartbeatFixture() *heartbeatFixture {
	start := time.Unix(1700000000, 0)
	f := &heartbeatFixture{now: start, lastAck: start}
	f.hb = &heartbeat{
		interval:   10 * time.Second,
		missedAcks: 2,
		logger:     zap.NewNop(),
		now: func() time.Time {
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.now
		},
		lastAck: func() time.Time {
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.lastAck
		},
		send: func(ctx context.Context, data []byte) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.sent++
			return f.sendErr
		},
		fail: func(cause error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.failed = cause
		},
	}
	return f
}

func (f *heartbeatFixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *heartbeatFixture) ack() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAck = f.now
}

func TestHeartbeatSendsWhileAcknowledged(t *testing.T) {
	f := newHeartbeatFixture()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.advance(10 * time.Second)
		require.True(t, f.hb.tick(ctx))
		f.ack()
	}
	assert.Equal(t, 5, f.sent)
	assert.NoError(t, f.failed)
}

func TestHeartbeatTimesOutAfterMissedAcks(t *testing.T) {
	f := newHeartbeatFixture()
	ctx := context.Background()

	f.advance(10 * time.Second)
	assert.True(t, f.hb.tick(ctx))
	f.advance(10 * time.Second)
	assert.True(t, f.hb.tick(ctx), "exactly at the deadline is still alive")
	f.advance(10 * time.Second)
	assert.False(t, f.hb.tick(ctx))

	assert.ErrorIs(t, f.failed, ErrHeartbeatTimeout)
	assert.Equal(t, 2, f.sent)
}

func TestHeartbeatWriteFailureEndsConnection(t *testing.T) {
	f := newHeartbeatFixture()
	f.sendErr = errors.New("broken pipe")

	f.advance(10 * time.Second)
	assert.False(t, f.hb.tick(context.Background()))
	require.Error(t, f.failed)
	assert.Contains(t, f.failed.Error(), "broken pipe")
}

func TestHeartbeatRunStopsOnCancel(t *testing.T) {
	f := newHeartbeatFixture()
	f.hb.interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.hb.run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("heartbeat did not stop")
	}
}
