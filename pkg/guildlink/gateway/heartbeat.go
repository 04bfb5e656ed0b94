package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/tsarna/guildlink/pkg/guildlink/o11y"
	"go.uber.org/zap"
)

// heartbeat keeps one connection alive. It writes a keep-alive frame on every
// tick and ends the connection when acknowledgements stop arriving.
type heartbeat struct {
	interval   time.Duration
	missedAcks int
	logger     *zap.Logger
	now        func() time.Time

	lastAck func() time.Time
	send    func(ctx context.Context, data []byte) error
	// fail ends the connection epoch with the given cause.
	fail func(cause error)

	misses o11y.Counter
}

// deadline is how long the connection may go without an acknowledgement.
func (h *heartbeat) deadline() time.Duration {
	return time.Duration(h.missedAcks) * h.interval
}

// run ticks until ctx is done or the connection is failed.
func (h *heartbeat) run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Debug("Heartbeat started",
		zap.Duration("interval", h.interval),
		zap.Int("missedAcks", h.missedAcks))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !h.tick(ctx) {
				return
			}
		}
	}
}

// tick performs one heartbeat round and reports whether the connection is
// still considered alive.
func (h *heartbeat) tick(ctx context.Context) bool {
	since := h.now().Sub(h.lastAck())
	if since > h.deadline() {
		h.logger.Warn("Heartbeat acknowledgement overdue, dropping connection",
			zap.Duration("sinceLastAck", since),
			zap.Duration("deadline", h.deadline()))
		if h.misses != nil {
			h.misses.Add(ctx, 1)
		}
		h.fail(ErrHeartbeatTimeout)
		return false
	}

	if err := h.send(ctx, EncodeHeartbeat()); err != nil {
		if ctx.Err() != nil {
			return false
		}
		h.logger.Warn("Failed to send heartbeat", zap.Error(err))
		h.fail(fmt.Errorf("failed to send heartbeat: %w", err))
		return false
	}

	return true
}
