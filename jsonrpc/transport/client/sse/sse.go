// Package sse implements the HTTP event-stream transport: a long-lived GET
// carries server-to-client messages while POSTs to a server-advertised message
// endpoint carry client-to-server messages. The first stream event names the
// message endpoint; every later event is one JSON-RPC message.
package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/tmaxmax/go-sse"

	"github.com/toolproto/mcpc/jsonrpc"
	"github.com/toolproto/mcpc/jsonrpc/transport"
)

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient sets the HTTP client used for the stream and for message POSTs.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) {
		t.httpClient = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithMaxEventSize caps the size of one inbound event.
func WithMaxEventSize(size int) Option {
	return func(t *Transport) {
		t.maxEventSize = size
	}
}

// Transport is an HTTP event-stream channel.
type Transport struct {
	connectURL   string
	httpClient   *http.Client
	logger       *slog.Logger
	maxEventSize int

	endpointMu sync.Mutex
	messageURL string

	bodyMu sync.Mutex
	body   io.ReadCloser

	messages chan *jsonrpc.Message
	done     chan struct{}

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

// New creates an SSE transport that connects to the given stream URL.
func New(connectURL string, options ...Option) *Transport {
	ret := &Transport{
		connectURL: connectURL,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		messages:   make(chan *jsonrpc.Message, 16),
		done:       make(chan struct{}),
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Open establishes the event stream and blocks until the server has
// advertised the message endpoint.
func (t *Transport) Open(ctx context.Context) error {
	req, err := http.NewRequest(http.MethodGet, t.connectURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return transport.NewFailure(fmt.Errorf("failed to connect %s: %w", t.connectURL, err))
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return transport.NewFailure(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	t.bodyMu.Lock()
	t.body = resp.Body
	t.bodyMu.Unlock()

	ready := make(chan error, 1)
	go t.listen(resp.Body, ready)

	select {
	case <-ctx.Done():
		t.Close()
		return ctx.Err()
	case err := <-ready:
		if err != nil {
			t.Close()
			return transport.NewFailure(err)
		}
		return nil
	}
}

// Send POSTs one message to the advertised endpoint.
func (t *Transport) Send(ctx context.Context, msg *jsonrpc.Message) error {
	endpoint := t.endpoint()
	if endpoint == "" {
		return transport.NewFailure(fmt.Errorf("message endpoint not established"))
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return transport.NewFailure(fmt.Errorf("failed to send message: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return transport.NewFailure(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}

// Messages returns the ordered inbound stream.
func (t *Transport) Messages() <-chan *jsonrpc.Message {
	return t.messages
}

// Err returns the terminal failure after Messages closes.
func (t *Transport) Err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.err
}

// Close tears the stream down. Closing the body unblocks the listener.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		t.bodyMu.Lock()
		if t.body != nil {
			_ = t.body.Close()
		}
		t.bodyMu.Unlock()
	})
	return nil
}

func (t *Transport) listen(body io.ReadCloser, ready chan<- error) {
	defer func() {
		body.Close()
		close(t.messages)
	}()

	var config *sse.ReadConfig
	if t.maxEventSize > 0 {
		config = &sse.ReadConfig{MaxEventSize: t.maxEventSize}
	}

	endpointSeen := false
	for ev, err := range sse.Read(body, config) {
		if err != nil {
			t.streamEnded(fmt.Errorf("event stream broken: %w", err), endpointSeen, ready)
			return
		}
		switch ev.Type {
		case "endpoint":
			resolved, err := t.resolveEndpoint(ev.Data)
			if err != nil {
				if !endpointSeen {
					ready <- err
				}
				return
			}
			t.setEndpoint(resolved)
			if !endpointSeen {
				endpointSeen = true
				ready <- nil
			}
		case "message":
			if !endpointSeen {
				t.logger.Error("received message before endpoint event")
				continue
			}
			msg, err := jsonrpc.Parse([]byte(ev.Data))
			if err != nil {
				t.logger.Error("dropping malformed event", "err", err)
				continue
			}
			select {
			case t.messages <- msg:
			case <-t.done:
				return
			}
		default:
			t.logger.Warn("unhandled event type", "type", ev.Type)
		}
	}
	t.streamEnded(fmt.Errorf("server closed the event stream"), endpointSeen, ready)
}

func (t *Transport) streamEnded(cause error, endpointSeen bool, ready chan<- error) {
	select {
	case <-t.done:
		return
	default:
	}
	err := transport.NewFailure(cause)
	t.errMu.Lock()
	if t.err == nil {
		t.err = err
	}
	t.errMu.Unlock()
	if !endpointSeen {
		ready <- cause
	}
}

// resolveEndpoint validates the advertised URL and resolves it against the
// stream URL so relative endpoints route to the same host.
func (t *Transport) resolveEndpoint(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("empty endpoint URL")
	}
	endpoint, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse endpoint URL: %w", err)
	}
	base, err := url.Parse(t.connectURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse connect URL: %w", err)
	}
	return base.ResolveReference(endpoint).String(), nil
}

func (t *Transport) endpoint() string {
	t.endpointMu.Lock()
	defer t.endpointMu.Unlock()
	return t.messageURL
}

func (t *Transport) setEndpoint(endpoint string) {
	t.endpointMu.Lock()
	defer t.endpointMu.Unlock()
	t.messageURL = endpoint
}
