// Package streamhttp implements the streamable HTTP transport: every outbound
// message is one HTTP POST, answered either by a direct JSON body or by an
// event-stream upgrade when the server needs to emit several messages. A
// standing GET stream carries server-initiated messages when the server
// supports it; when it does not, the transport falls back to unary operation
// and the decision is cached for the life of the connection.
package streamhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"sync"

	"github.com/tmaxmax/go-sse"

	"github.com/toolproto/mcpc/jsonrpc"
	"github.com/toolproto/mcpc/jsonrpc/transport"
)

const (
	contentTypeJSON   = "application/json"
	contentTypeStream = "text/event-stream"
	sessionHeader     = "Mcp-Session-Id"
)

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient sets the HTTP client used for every exchange; an auth-aware
// client (see client/auth/transport) slots in here.
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

// WithoutStandingStream disables the server-initiated GET stream up front,
// forcing unary operation without probing.
func WithoutStandingStream() Option {
	return func(t *Transport) {
		t.streamDisabled = true
	}
}

// Transport is a streamable HTTP channel.
type Transport struct {
	endpoint       string
	httpClient     *http.Client
	logger         *slog.Logger
	streamDisabled bool

	// streaming holds the upgrade/fallback decision, made once in Open and
	// never re-probed per call.
	streaming bool

	sessionMu sync.Mutex
	sessionID string

	standingMu   sync.Mutex
	standingBody io.ReadCloser

	inbound  chan *jsonrpc.Message
	messages chan *jsonrpc.Message
	done     chan struct{}

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

// New creates a streamable HTTP transport for the given endpoint URL.
func New(endpoint string, options ...Option) *Transport {
	ret := &Transport{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		inbound:    make(chan *jsonrpc.Message, 16),
		messages:   make(chan *jsonrpc.Message),
		done:       make(chan struct{}),
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Open probes the standing stream once and starts the inbound pump.
func (t *Transport) Open(ctx context.Context) error {
	go t.pump()
	if t.streamDisabled {
		t.streaming = false
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", contentTypeStream)
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return transport.NewFailure(fmt.Errorf("failed to connect %s: %w", t.endpoint, err))
	}
	switch {
	case resp.StatusCode == http.StatusOK && hasContentType(resp, contentTypeStream):
		t.streaming = true
		t.standingMu.Lock()
		t.standingBody = resp.Body
		t.standingMu.Unlock()
		go t.consumeStream(resp.Body, true)
	case resp.StatusCode == http.StatusMethodNotAllowed,
		resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusUnsupportedMediaType,
		resp.StatusCode == http.StatusOK:
		// Server does not speak the standing stream; stay unary for this connection.
		resp.Body.Close()
		t.streaming = false
		t.logger.Debug("standing stream unsupported, using unary exchanges", "status", resp.StatusCode)
	default:
		resp.Body.Close()
		return transport.NewFailure(fmt.Errorf("unexpected status %d opening stream", resp.StatusCode))
	}
	return nil
}

// Streaming reports the cached upgrade decision.
func (t *Transport) Streaming() bool { return t.streaming }

// Send POSTs one message; the reply arrives inline (JSON), as an upgraded
// per-request event stream, or not at all (202 for notifications).
func (t *Transport) Send(ctx context.Context, msg *jsonrpc.Message) error {
	select {
	case <-t.done:
		if err := t.Err(); err != nil {
			return err
		}
		return transport.ErrClosed
	default:
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON+", "+contentTypeStream)
	if id := t.session(); id != "" {
		req.Header.Set(sessionHeader, id)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return transport.NewFailure(fmt.Errorf("failed to send message: %w", err))
	}
	if id := resp.Header.Get(sessionHeader); id != "" {
		t.setSession(id)
	}
	switch {
	case resp.StatusCode == http.StatusAccepted:
		resp.Body.Close()
		return nil
	case resp.StatusCode == http.StatusOK && hasContentType(resp, contentTypeStream):
		go t.consumeStream(resp.Body, false)
		return nil
	case resp.StatusCode == http.StatusOK:
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return transport.NewFailure(fmt.Errorf("failed to read response: %w", err))
		}
		if len(body) == 0 {
			return nil
		}
		reply, err := jsonrpc.Parse(body)
		if err != nil {
			t.logger.Error("dropping malformed response", "err", err)
			return nil
		}
		t.deliver(reply)
		return nil
	default:
		resp.Body.Close()
		return transport.NewFailure(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
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

// Close ends the logical session (best-effort DELETE) and stops the pump.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		if id := t.session(); id != "" {
			req, err := http.NewRequest(http.MethodDelete, t.endpoint, nil)
			if err == nil {
				req.Header.Set(sessionHeader, id)
				if resp, err := t.httpClient.Do(req); err == nil {
					resp.Body.Close()
				}
			}
		}
		close(t.done)
		t.standingMu.Lock()
		if t.standingBody != nil {
			_ = t.standingBody.Close()
		}
		t.standingMu.Unlock()
	})
	return nil
}

// fail records the first terminal failure and stops the pump.
func (t *Transport) fail(err error) {
	t.errMu.Lock()
	if t.err == nil {
		t.err = err
	}
	t.errMu.Unlock()
	t.closeOnce.Do(func() {
		close(t.done)
		t.standingMu.Lock()
		if t.standingBody != nil {
			_ = t.standingBody.Close()
		}
		t.standingMu.Unlock()
	})
}

// pump is the single forwarder onto the messages channel; it owns the close.
func (t *Transport) pump() {
	defer close(t.messages)
	for {
		select {
		case <-t.done:
			return
		case msg := <-t.inbound:
			select {
			case t.messages <- msg:
			case <-t.done:
				return
			}
		}
	}
}

func (t *Transport) deliver(msg *jsonrpc.Message) {
	select {
	case t.inbound <- msg:
	case <-t.done:
	}
}

// consumeStream reads one event stream, one message per event. The standing
// stream ending for any reason while the transport is open is a failure; a
// per-request stream only fails the transport on a read error.
func (t *Transport) consumeStream(body io.ReadCloser, standing bool) {
	defer body.Close()
	for ev, err := range sse.Read(body, nil) {
		if err != nil {
			select {
			case <-t.done:
			default:
				t.fail(transport.NewFailure(fmt.Errorf("event stream broken: %w", err)))
			}
			return
		}
		msg, err := jsonrpc.Parse([]byte(ev.Data))
		if err != nil {
			t.logger.Error("dropping malformed event", "err", err)
			continue
		}
		t.deliver(msg)
	}
	if standing {
		select {
		case <-t.done:
		default:
			t.fail(transport.NewFailure(fmt.Errorf("server closed the event stream")))
		}
	}
}

func (t *Transport) session() string {
	t.sessionMu.Lock()
	defer t.sessionMu.Unlock()
	return t.sessionID
}

func (t *Transport) setSession(id string) {
	t.sessionMu.Lock()
	defer t.sessionMu.Unlock()
	t.sessionID = id
}

func hasContentType(resp *http.Response, want string) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == want
}
