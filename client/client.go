package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/toolproto/mcpc/client/auth"
	"github.com/toolproto/mcpc/jsonrpc"
	"github.com/toolproto/mcpc/jsonrpc/transport"
	"github.com/toolproto/mcpc/schema"
)

var (
	// ErrNotReady is returned when an operation is attempted outside the
	// ready state, including while a reconnect is in progress.
	ErrNotReady = errors.New("session is not ready")
	// ErrConnectionClosed resolves requests that were in flight when the
	// connection failed or the session was closed.
	ErrConnectionClosed = errors.New("connection closed")
)

// DialFunc creates a fresh, unopened transport. Reconnects call it again so a
// failed channel is never reused.
type DialFunc func(ctx context.Context) (transport.Transport, error)

type pendingReply struct {
	message *jsonrpc.Message
	err     error
}

// Client is a resilient session on top of a failure-prone transport: it owns
// the handshake, request correlation, capability caches, notification
// dispatch, health probing and reconnection.
type Client struct {
	dial            DialFunc
	info            schema.Implementation
	capabilities    schema.ClientCapabilities
	protocolVersion string
	logger          *slog.Logger
	requestTimeout  time.Duration
	authInterceptor *auth.Authorizer

	state  sessionState
	nextID atomic.Uint64

	mu        sync.Mutex
	transport transport.Transport
	pending   map[string]chan pendingReply

	serverMu           sync.RWMutex
	serverInfo         schema.Implementation
	serverCapabilities schema.ServerCapabilities
	negotiatedVersion  string

	rootsMu sync.RWMutex
	roots   []schema.Root

	tools     capabilityCache[schema.Tool]
	resources capabilityCache[schema.Resource]
	prompts   capabilityCache[schema.Prompt]

	dispatcher *dispatcher
	health     *healthMonitor

	autoReconnect bool
	reconnecting  atomic.Bool
}

// New creates a session client. The session stays disconnected until Connect.
func New(name, version string, dial DialFunc, options ...Option) *Client {
	ret := &Client{
		dial:            dial,
		info:            schema.Implementation{Name: name, Version: version},
		protocolVersion: schema.LatestProtocolVersion,
		logger:          slog.Default(),
		pending:         map[string]chan pendingReply{},
		autoReconnect:   true,
	}
	ret.capabilities.Roots = &schema.ClientCapabilitiesRoots{ListChanged: true}
	ret.health = newHealthMonitor(ret)
	for _, opt := range options {
		opt(ret)
	}
	ret.dispatcher = newDispatcher(ret.logger)
	ret.wireCacheInvalidation()
	return ret
}

// State returns the current session state.
func (c *Client) State() State {
	return c.state.Load()
}

// ServerInfo returns the implementation the server reported at handshake.
func (c *Client) ServerInfo() schema.Implementation {
	c.serverMu.RLock()
	defer c.serverMu.RUnlock()
	return c.serverInfo
}

// ServerCapabilities returns the capabilities negotiated at handshake.
func (c *Client) ServerCapabilities() schema.ServerCapabilities {
	c.serverMu.RLock()
	defer c.serverMu.RUnlock()
	return c.serverCapabilities
}

// ProtocolVersion returns the negotiated protocol version.
func (c *Client) ProtocolVersion() string {
	c.serverMu.RLock()
	defer c.serverMu.RUnlock()
	return c.negotiatedVersion
}

// Connect dials the transport and runs the initialize handshake. On success
// the session is ready and the health monitor is running.
func (c *Client) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(StateDisconnected, StateConnecting) {
		if c.state.Load() == StateClosed {
			return ErrConnectionClosed
		}
		return fmt.Errorf("session already connected")
	}
	if err := c.connect(ctx); err != nil {
		c.state.CompareAndSwap(StateConnecting, StateDisconnected)
		return err
	}
	return nil
}

// connect performs one dial+handshake attempt; shared by Connect and the
// reconnect loop.
func (c *Client) connect(ctx context.Context) error {
	t, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	if err := t.Open(ctx); err != nil {
		_ = t.Close()
		return fmt.Errorf("failed to open transport: %w", err)
	}
	c.mu.Lock()
	c.transport = t
	c.mu.Unlock()
	go c.receive(t)

	from := StateConnecting
	if !c.state.CompareAndSwap(StateConnecting, StateHandshaking) {
		from = StateReconnecting
		if !c.state.CompareAndSwap(StateReconnecting, StateHandshaking) {
			_ = t.Close()
			return ErrConnectionClosed
		}
	}
	if err := c.handshake(ctx, t); err != nil {
		_ = t.Close()
		c.state.CompareAndSwap(StateHandshaking, from)
		return err
	}
	if !c.state.CompareAndSwap(StateHandshaking, StateReady) {
		_ = t.Close()
		return ErrConnectionClosed
	}
	c.health.Start(t)
	c.logger.Info("session ready", "server", c.ServerInfo().Name, "protocol", c.ProtocolVersion())
	return nil
}

func (c *Client) handshake(ctx context.Context, t transport.Transport) error {
	params := &schema.InitializeRequestParams{
		Capabilities:    c.capabilities,
		ClientInfo:      c.info,
		ProtocolVersion: c.protocolVersion,
	}
	raw, err := c.doCall(ctx, t, schema.MethodInitialize, params)
	if err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}
	var result schema.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("failed to unmarshal initialize result: %w", err)
	}
	c.serverMu.Lock()
	c.serverInfo = result.ServerInfo
	c.serverCapabilities = result.Capabilities
	c.negotiatedVersion = result.ProtocolVersion
	c.serverMu.Unlock()

	notification, err := jsonrpc.NewNotification(schema.MethodNotificationInitialized, nil)
	if err != nil {
		return err
	}
	if err := t.Send(ctx, notification); err != nil {
		return fmt.Errorf("failed to notify initialized: %w", err)
	}
	return nil
}

// Close ends the session: in-flight requests resolve with
// ErrConnectionClosed and the transport is torn down.
func (c *Client) Close() error {
	if !c.state.storeUnlessClosed(StateClosed) {
		return nil
	}
	c.health.Stop()
	c.mu.Lock()
	t := c.transport
	c.transport = nil
	c.mu.Unlock()
	c.failPending(ErrConnectionClosed)
	if t != nil {
		_ = t.Close()
	}
	c.dispatcher.Close()
	return nil
}

// OnNotification registers a handler for one notification method.
func (c *Client) OnNotification(method string, handler NotificationHandler) {
	c.dispatcher.On(method, handler)
}

// OnAnyNotification registers a catch-all notification handler.
func (c *Client) OnAnyNotification(handler NotificationHandler) {
	c.dispatcher.OnAny(handler)
}

// ---- operations ----

func (c *Client) ListTools(ctx context.Context, cursor *string) (*schema.ListToolsResult, error) {
	params := &schema.ListToolsRequestParams{Cursor: cursor}
	return call[schema.ListToolsRequestParams, schema.ListToolsResult](ctx, c, schema.MethodToolsList, params)
}

func (c *Client) CallTool(ctx context.Context, params *schema.CallToolRequestParams) (*schema.CallToolResult, error) {
	return call[schema.CallToolRequestParams, schema.CallToolResult](ctx, c, schema.MethodToolsCall, params)
}

func (c *Client) ListResources(ctx context.Context, cursor *string) (*schema.ListResourcesResult, error) {
	params := &schema.ListResourcesRequestParams{Cursor: cursor}
	return call[schema.ListResourcesRequestParams, schema.ListResourcesResult](ctx, c, schema.MethodResourcesList, params)
}

func (c *Client) ListResourceTemplates(ctx context.Context, cursor *string) (*schema.ListResourceTemplatesResult, error) {
	params := &schema.ListResourceTemplatesRequestParams{Cursor: cursor}
	return call[schema.ListResourceTemplatesRequestParams, schema.ListResourceTemplatesResult](ctx, c, schema.MethodResourcesTemplatesList, params)
}

func (c *Client) ReadResource(ctx context.Context, params *schema.ReadResourceRequestParams) (*schema.ReadResourceResult, error) {
	return call[schema.ReadResourceRequestParams, schema.ReadResourceResult](ctx, c, schema.MethodResourcesRead, params)
}

func (c *Client) Subscribe(ctx context.Context, params *schema.SubscribeRequestParams) (*schema.SubscribeResult, error) {
	return call[schema.SubscribeRequestParams, schema.SubscribeResult](ctx, c, schema.MethodResourcesSubscribe, params)
}

func (c *Client) Unsubscribe(ctx context.Context, params *schema.UnsubscribeRequestParams) (*schema.UnsubscribeResult, error) {
	return call[schema.UnsubscribeRequestParams, schema.UnsubscribeResult](ctx, c, schema.MethodResourcesUnsubscribe, params)
}

func (c *Client) ListPrompts(ctx context.Context, cursor *string) (*schema.ListPromptsResult, error) {
	params := &schema.ListPromptsRequestParams{Cursor: cursor}
	return call[schema.ListPromptsRequestParams, schema.ListPromptsResult](ctx, c, schema.MethodPromptsList, params)
}

func (c *Client) GetPrompt(ctx context.Context, params *schema.GetPromptRequestParams) (*schema.GetPromptResult, error) {
	return call[schema.GetPromptRequestParams, schema.GetPromptResult](ctx, c, schema.MethodPromptsGet, params)
}

func (c *Client) Complete(ctx context.Context, params *schema.CompleteRequestParams) (*schema.CompleteResult, error) {
	return call[schema.CompleteRequestParams, schema.CompleteResult](ctx, c, schema.MethodComplete, params)
}

func (c *Client) SetLevel(ctx context.Context, params *schema.SetLevelRequestParams) (*schema.SetLevelResult, error) {
	return call[schema.SetLevelRequestParams, schema.SetLevelResult](ctx, c, schema.MethodLoggingSetLevel, params)
}

func (c *Client) Ping(ctx context.Context) (*schema.PingResult, error) {
	params := &schema.PingRequestParams{}
	return call[schema.PingRequestParams, schema.PingResult](ctx, c, schema.MethodPing, params)
}

// Call issues a request for a method without a typed wrapper and returns the
// raw result.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.state.Load() != StateReady {
		return nil, ErrNotReady
	}
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return nil, ErrNotReady
	}
	return c.doCall(ctx, t, method, params)
}

// SetRoots replaces the advertised roots and notifies the server. The server
// refetches via roots/list at its own pace.
func (c *Client) SetRoots(ctx context.Context, roots []schema.Root) error {
	c.rootsMu.Lock()
	c.roots = append([]schema.Root{}, roots...)
	c.rootsMu.Unlock()
	if c.state.Load() != StateReady {
		return ErrNotReady
	}
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return ErrNotReady
	}
	notification, err := jsonrpc.NewNotification(schema.MethodNotificationRootsListChanged, nil)
	if err != nil {
		return err
	}
	return t.Send(ctx, notification)
}

// Roots returns the currently advertised roots.
func (c *Client) Roots() []schema.Root {
	c.rootsMu.RLock()
	defer c.rootsMu.RUnlock()
	return append([]schema.Root{}, c.roots...)
}

// ---- cached listings ----

// Tools returns the cached tool listing, fetching all pages when stale.
func (c *Client) Tools(ctx context.Context) ([]schema.Tool, error) {
	return c.tools.Get(ctx, func(ctx context.Context) ([]schema.Tool, error) {
		var items []schema.Tool
		var cursor *string
		for {
			page, err := c.ListTools(ctx, cursor)
			if err != nil {
				return nil, err
			}
			items = append(items, page.Tools...)
			if page.NextCursor == nil || *page.NextCursor == "" {
				return items, nil
			}
			cursor = page.NextCursor
		}
	})
}

// Resources returns the cached resource listing, fetching all pages when stale.
func (c *Client) Resources(ctx context.Context) ([]schema.Resource, error) {
	return c.resources.Get(ctx, func(ctx context.Context) ([]schema.Resource, error) {
		var items []schema.Resource
		var cursor *string
		for {
			page, err := c.ListResources(ctx, cursor)
			if err != nil {
				return nil, err
			}
			items = append(items, page.Resources...)
			if page.NextCursor == nil || *page.NextCursor == "" {
				return items, nil
			}
			cursor = page.NextCursor
		}
	})
}

// Prompts returns the cached prompt listing, fetching all pages when stale.
func (c *Client) Prompts(ctx context.Context) ([]schema.Prompt, error) {
	return c.prompts.Get(ctx, func(ctx context.Context) ([]schema.Prompt, error) {
		var items []schema.Prompt
		var cursor *string
		for {
			page, err := c.ListPrompts(ctx, cursor)
			if err != nil {
				return nil, err
			}
			items = append(items, page.Prompts...)
			if page.NextCursor == nil || *page.NextCursor == "" {
				return items, nil
			}
			cursor = page.NextCursor
		}
	})
}

func (c *Client) wireCacheInvalidation() {
	c.dispatcher.On(schema.MethodNotificationToolsListChanged, func(*jsonrpc.Message) {
		c.tools.Invalidate()
	})
	c.dispatcher.On(schema.MethodNotificationResourcesListChanged, func(*jsonrpc.Message) {
		c.resources.Invalidate()
	})
	c.dispatcher.On(schema.MethodNotificationPromptsListChanged, func(*jsonrpc.Message) {
		c.prompts.Invalidate()
	})
}

// ---- request correlation ----

// call is the typed request path used by every operation.
func call[P any, R any](ctx context.Context, c *Client, method string, params *P) (*R, error) {
	if c.state.Load() != StateReady {
		return nil, ErrNotReady
	}
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return nil, ErrNotReady
	}
	raw, err := c.doCall(ctx, t, method, params)
	if err != nil {
		return nil, err
	}
	var result R
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %v result: %w", method, err)
	}
	return &result, nil
}

// doCall sends one request on the given transport and waits for the
// correlated reply. Context cancellation abandons the request and tells the
// server via notifications/cancelled; a late reply is then discarded.
func (c *Client) doCall(ctx context.Context, t transport.Transport, method string, params any) (json.RawMessage, error) {
	if c.requestTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
			defer cancel()
		}
	}
	request, id, err := c.newRequest(method, params)
	if err != nil {
		return nil, err
	}
	reply, err := c.sendAndWait(ctx, t, request, id)
	if err != nil {
		return nil, err
	}
	if reply.Error != nil && c.authInterceptor != nil && reply.Error.Code == schema.Unauthorized {
		next, interceptErr := c.authInterceptor.Intercept(ctx, request, reply)
		if interceptErr != nil {
			return nil, interceptErr
		}
		if next != nil {
			if reply, err = c.sendAndWait(ctx, t, next, id); err != nil {
				return nil, err
			}
		}
	}
	if reply.Error != nil {
		return nil, reply.Error
	}
	return reply.Result, nil
}

func (c *Client) newRequest(method string, params any) (*jsonrpc.Message, jsonrpc.RequestID, error) {
	id := jsonrpc.NewNumberID(c.nextID.Add(1))
	request, err := jsonrpc.NewRequest(id, method, params)
	if err != nil {
		return nil, id, fmt.Errorf("failed to build %v request: %w", method, err)
	}
	return request, id, nil
}

func (c *Client) sendAndWait(ctx context.Context, t transport.Transport, request *jsonrpc.Message, id jsonrpc.RequestID) (*jsonrpc.Message, error) {
	replyCh := make(chan pendingReply, 1)
	key := id.String()
	c.mu.Lock()
	c.pending[key] = replyCh
	c.mu.Unlock()

	if err := t.Send(ctx, request); err != nil {
		c.removePending(key)
		if transport.IsFailure(err) {
			return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
		}
		return nil, err
	}
	select {
	case <-ctx.Done():
		c.removePending(key)
		c.cancelRemote(t, id)
		return nil, ctx.Err()
	case reply := <-replyCh:
		if reply.err != nil {
			return nil, reply.err
		}
		return reply.message, nil
	}
}

// cancelRemote tells the server an abandoned request no longer needs work.
// Best effort: the session no longer waits on anything here.
func (c *Client) cancelRemote(t transport.Transport, id jsonrpc.RequestID) {
	params := &schema.CancelledParams{RequestID: id, Reason: "context cancelled"}
	notification, err := jsonrpc.NewNotification(schema.MethodNotificationCancelled, params)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = t.Send(ctx, notification)
}

func (c *Client) removePending(key string) {
	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()
}

// failPending resolves every in-flight request with err.
func (c *Client) failPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = map[string]chan pendingReply{}
	c.mu.Unlock()
	for _, ch := range pending {
		ch <- pendingReply{err: err}
	}
}

// ---- inbound routing ----

// receive drains one transport until it ends, then runs the disconnect path.
func (c *Client) receive(t transport.Transport) {
	for msg := range t.Messages() {
		c.route(t, msg)
	}
	c.handleDisconnect(t, t.Err())
}

func (c *Client) route(t transport.Transport, msg *jsonrpc.Message) {
	switch {
	case msg.IsResponse():
		c.routeReply(msg)
	case msg.IsNotification():
		c.dispatcher.Dispatch(msg)
	case msg.IsRequest():
		c.handleServerRequest(t, msg)
	default:
		c.logger.Warn("dropping unroutable message")
	}
}

func (c *Client) routeReply(msg *jsonrpc.Message) {
	key := msg.Id.String()
	c.mu.Lock()
	replyCh, ok := c.pending[key]
	delete(c.pending, key)
	c.mu.Unlock()
	if !ok {
		// reply to a cancelled or timed-out request
		c.logger.Debug("discarding uncorrelated reply", "id", key)
		return
	}
	replyCh <- pendingReply{message: msg}
}

// handleServerRequest answers the small server-to-client surface: liveness
// pings and roots listing. Anything else gets method-not-found.
func (c *Client) handleServerRequest(t transport.Transport, msg *jsonrpc.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	switch msg.Method {
	case schema.MethodPing:
		c.respondResult(ctx, t, *msg.Id, &schema.PingResult{})
	case schema.MethodRootsList:
		c.respondResult(ctx, t, *msg.Id, &schema.ListRootsResult{Roots: c.Roots()})
	default:
		response := jsonrpc.NewErrorResponse(*msg.Id,
			jsonrpc.NewMethodNotFound(fmt.Sprintf("method %q not supported", msg.Method), nil))
		c.respond(ctx, t, response)
	}
}

func (c *Client) respondResult(ctx context.Context, t transport.Transport, id jsonrpc.RequestID, result any) {
	response, err := jsonrpc.NewResponse(id, result)
	if err != nil {
		c.logger.Error("failed to build response", "err", err)
		return
	}
	c.respond(ctx, t, response)
}

func (c *Client) respond(ctx context.Context, t transport.Transport, response *jsonrpc.Message) {
	if err := t.Send(ctx, response); err != nil {
		c.logger.Error("failed to respond to server request", "err", err)
	}
}

// handleDisconnect runs once per transport when its inbound stream ends.
func (c *Client) handleDisconnect(t transport.Transport, cause error) {
	c.health.Stop()
	c.mu.Lock()
	if c.transport == t {
		c.transport = nil
	}
	c.mu.Unlock()
	_ = t.Close()
	c.failPending(ErrConnectionClosed)

	state := c.state.Load()
	if state == StateClosed {
		return
	}
	if cause != nil {
		c.logger.Warn("connection lost", "err", cause)
	} else {
		c.logger.Info("connection closed by peer")
	}
	if !c.autoReconnect {
		if c.state.storeUnlessClosed(StateDisconnected) {
			c.logger.Info("auto reconnect disabled, staying disconnected")
		}
		return
	}
	if state != StateReady {
		// the connect attempt that owns this transport handles its own failure
		return
	}
	if c.reconnecting.CompareAndSwap(false, true) {
		if !c.state.storeUnlessClosed(StateReconnecting) {
			c.reconnecting.Store(false)
			return
		}
		go c.reconnectLoop()
	}
}
