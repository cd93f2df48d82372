package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/toolproto/mcpc/jsonrpc"
	"github.com/toolproto/mcpc/jsonrpc/transport"
	"github.com/toolproto/mcpc/schema"
)

// fakeHandler produces the reply for one inbound request; returning nil leaves
// the request unanswered.
type fakeHandler func(request *jsonrpc.Message) *jsonrpc.Message

// fakeTransport is an in-memory transport scripted per method. It answers
// initialize and ping out of the box so a session can reach the ready state.
type fakeTransport struct {
	mu       sync.Mutex
	handlers map[string]fakeHandler
	sent     []*jsonrpc.Message
	messages chan *jsonrpc.Message
	closed   bool
	err      error
}

func newFakeTransport() *fakeTransport {
	ret := &fakeTransport{
		handlers: map[string]fakeHandler{},
		messages: make(chan *jsonrpc.Message, 64),
	}
	ret.handle(schema.MethodInitialize, func(request *jsonrpc.Message) *jsonrpc.Message {
		return mustResponse(request, &schema.InitializeResult{
			ProtocolVersion: schema.LatestProtocolVersion,
			ServerInfo:      schema.Implementation{Name: "fake", Version: "1.0"},
		})
	})
	ret.handle(schema.MethodPing, func(request *jsonrpc.Message) *jsonrpc.Message {
		return mustResponse(request, &schema.PingResult{})
	})
	return ret
}

func (f *fakeTransport) handle(method string, handler fakeHandler) {
	f.mu.Lock()
	f.handlers[method] = handler
	f.mu.Unlock()
}

func (f *fakeTransport) Open(ctx context.Context) error { return nil }

func (f *fakeTransport) Send(ctx context.Context, msg *jsonrpc.Message) error {
	f.mu.Lock()
	if f.closed {
		err := f.err
		f.mu.Unlock()
		if err != nil {
			return err
		}
		return transport.ErrClosed
	}
	f.sent = append(f.sent, msg)
	handler := f.handlers[msg.Method]
	f.mu.Unlock()
	if msg.IsRequest() && handler != nil {
		if reply := handler(msg); reply != nil {
			f.deliver(reply)
		}
	}
	return nil
}

func (f *fakeTransport) Messages() <-chan *jsonrpc.Message { return f.messages }

func (f *fakeTransport) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.messages)
	}
	return nil
}

// fail simulates connection loss: the inbound stream ends with a terminal error.
func (f *fakeTransport) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.err = transport.NewFailure(err)
		close(f.messages)
	}
}

// deliver injects a server-initiated message into the inbound stream.
func (f *fakeTransport) deliver(msg *jsonrpc.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.messages <- msg
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) sentMessages() []*jsonrpc.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*jsonrpc.Message{}, f.sent...)
}

func (f *fakeTransport) sentMethods() []string {
	var methods []string
	for _, msg := range f.sentMessages() {
		methods = append(methods, msg.Method)
	}
	return methods
}

func mustResponse(request *jsonrpc.Message, result any) *jsonrpc.Message {
	response, err := jsonrpc.NewResponse(*request.Id, result)
	if err != nil {
		panic(err)
	}
	return response
}

func mustNotification(method string, params any) *jsonrpc.Message {
	notification, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		panic(err)
	}
	return notification
}

func mustRequest(id uint64, method string, params any) *jsonrpc.Message {
	request, err := jsonrpc.NewRequest(jsonrpc.NewNumberID(id), method, params)
	if err != nil {
		panic(err)
	}
	return request
}

// waitFor polls condition until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
