package client

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/toolproto/mcpc/jsonrpc"
	"github.com/toolproto/mcpc/schema"
)

func TestDispatcherPreservesOrder(t *testing.T) {
	d := newDispatcher(slog.Default())
	defer d.Close()

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})
	const count = 50

	d.On(schema.MethodNotificationProgress, func(notification *jsonrpc.Message) {
		mu.Lock()
		order = append(order, string(notification.Params))
		if len(order) == count {
			close(done)
		}
		mu.Unlock()
	})

	for i := 0; i < count; i++ {
		d.Dispatch(mustNotification(schema.MethodNotificationProgress, i))
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("notifications not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		assert.Equal(t, fmt.Sprintf("%d", i), got, "delivery must preserve arrival order")
	}
}

func TestDispatcherIsolatesPanickingHandler(t *testing.T) {
	d := newDispatcher(slog.Default())
	defer d.Close()

	received := make(chan struct{}, 2)
	d.On(schema.MethodNotificationMessage, func(*jsonrpc.Message) {
		panic("handler exploded")
	})
	d.On(schema.MethodNotificationMessage, func(*jsonrpc.Message) {
		received <- struct{}{}
	})

	d.Dispatch(mustNotification(schema.MethodNotificationMessage, nil))
	d.Dispatch(mustNotification(schema.MethodNotificationMessage, nil))

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatal("later handler starved by a panicking one")
		}
	}
}

func TestDispatcherCatchAll(t *testing.T) {
	d := newDispatcher(slog.Default())
	defer d.Close()

	received := make(chan string, 2)
	d.OnAny(func(notification *jsonrpc.Message) {
		received <- notification.Method
	})
	d.Dispatch(mustNotification(schema.MethodNotificationToolsListChanged, nil))
	d.Dispatch(mustNotification(schema.MethodNotificationPromptsListChanged, nil))

	assert.Equal(t, schema.MethodNotificationToolsListChanged, <-received)
	assert.Equal(t, schema.MethodNotificationPromptsListChanged, <-received)
}
