package client

import (
	"log/slog"
	"sync"

	"github.com/toolproto/mcpc/jsonrpc"
)

// NotificationHandler consumes one server notification.
type NotificationHandler func(notification *jsonrpc.Message)

// dispatcher fans server notifications out to registered handlers. Delivery is
// ordered: one goroutine drains the queue and invokes handlers synchronously
// per message, so a notification never overtakes an earlier one. A panicking
// handler is isolated and must not take the session down.
type dispatcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]NotificationHandler
	catchAll []NotificationHandler

	queue chan *jsonrpc.Message
	done  chan struct{}
	wg    sync.WaitGroup
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	ret := &dispatcher{
		logger:   logger,
		handlers: map[string][]NotificationHandler{},
		queue:    make(chan *jsonrpc.Message, 64),
		done:     make(chan struct{}),
	}
	ret.wg.Add(1)
	go ret.run()
	return ret
}

// On registers a handler for one notification method.
func (d *dispatcher) On(method string, handler NotificationHandler) {
	d.mu.Lock()
	d.handlers[method] = append(d.handlers[method], handler)
	d.mu.Unlock()
}

// OnAny registers a catch-all handler invoked for every notification.
func (d *dispatcher) OnAny(handler NotificationHandler) {
	d.mu.Lock()
	d.catchAll = append(d.catchAll, handler)
	d.mu.Unlock()
}

// Dispatch enqueues a notification; it drops the message with a log entry
// when the queue is saturated rather than blocking the receive loop.
func (d *dispatcher) Dispatch(notification *jsonrpc.Message) {
	select {
	case <-d.done:
	case d.queue <- notification:
	default:
		d.logger.Warn("notification queue full, dropping", "method", notification.Method)
	}
}

// Close stops the drain goroutine after the queue empties.
func (d *dispatcher) Close() {
	close(d.done)
	d.wg.Wait()
}

func (d *dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			// drain what is already queued
			for {
				select {
				case notification := <-d.queue:
					d.deliver(notification)
				default:
					return
				}
			}
		case notification := <-d.queue:
			d.deliver(notification)
		}
	}
}

func (d *dispatcher) deliver(notification *jsonrpc.Message) {
	d.mu.RLock()
	handlers := append([]NotificationHandler{}, d.handlers[notification.Method]...)
	handlers = append(handlers, d.catchAll...)
	d.mu.RUnlock()
	for _, handler := range handlers {
		d.invoke(handler, notification)
	}
}

func (d *dispatcher) invoke(handler NotificationHandler, notification *jsonrpc.Message) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("notification handler panicked", "method", notification.Method, "panic", r)
		}
	}()
	handler(notification)
}
