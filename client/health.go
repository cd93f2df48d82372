package client

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/toolproto/mcpc/jsonrpc/transport"
)

const (
	defaultPingInterval  = 30 * time.Second
	defaultPingTimeout   = 10 * time.Second
	defaultPingThreshold = 3
)

// healthMonitor probes session liveness with protocol pings. A run is bound
// to one transport: consecutive probe failures past the threshold close that
// transport, which funnels recovery through the ordinary disconnect path so
// there is exactly one reconnect mechanism.
type healthMonitor struct {
	client    *Client
	interval  time.Duration
	timeout   time.Duration
	threshold int

	mu   sync.Mutex
	stop chan struct{}
}

func newHealthMonitor(client *Client) *healthMonitor {
	return &healthMonitor{
		client:    client,
		interval:  defaultPingInterval,
		timeout:   defaultPingTimeout,
		threshold: defaultPingThreshold,
	}
}

// Start begins probing the given transport. A zero interval disables probing.
func (h *healthMonitor) Start(t transport.Transport) {
	if h.interval <= 0 {
		return
	}
	h.mu.Lock()
	if h.stop != nil {
		close(h.stop)
	}
	stop := make(chan struct{})
	h.stop = stop
	h.mu.Unlock()
	go h.run(t, stop)
}

// Stop ends the current probe run, if any.
func (h *healthMonitor) Stop() {
	h.mu.Lock()
	if h.stop != nil {
		close(h.stop)
		h.stop = nil
	}
	h.mu.Unlock()
}

func (h *healthMonitor) run(t transport.Transport, stop chan struct{}) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	failures := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if h.probe() {
				failures = 0
				continue
			}
			failures++
			h.client.logger.Warn("ping probe failed", "failures", failures, "threshold", h.threshold)
			if failures >= h.threshold {
				h.client.logger.Warn("session unhealthy, closing transport")
				// receive loop observes the close and drives reconnection
				_ = t.Close()
				return
			}
		}
	}
}

func (h *healthMonitor) probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	_, err := h.client.Ping(ctx)
	return err == nil
}

// reconnectLoop re-dials with exponential backoff until the session is ready
// again or permanently closed. Exactly one loop runs at a time, guarded by
// the reconnecting flag.
func (c *Client) reconnectLoop() {
	defer c.reconnecting.Store(false)
	ctx := context.Background()
	operation := func() (struct{}, error) {
		if c.state.Load() == StateClosed {
			return struct{}{}, backoff.Permanent(ErrConnectionClosed)
		}
		if err := c.connect(ctx); err != nil {
			c.logger.Warn("reconnect attempt failed", "err", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = time.Second
	expo.MaxInterval = time.Minute
	if _, err := backoff.Retry(ctx, operation, backoff.WithBackOff(expo)); err != nil {
		c.logger.Error("reconnect abandoned", "err", err)
		// an explicit Close during the loop wins over the disconnected fallback
		c.state.CompareAndSwap(StateReconnecting, StateDisconnected)
		return
	}
	c.logger.Info("session reconnected")
}
