package client

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolproto/mcpc/jsonrpc"
	"github.com/toolproto/mcpc/jsonrpc/transport"
	"github.com/toolproto/mcpc/schema"
)

func TestReconnectAfterConnectionLoss(t *testing.T) {
	first := newFakeTransport()
	second := newFakeTransport()
	var dials atomic.Int32
	dial := func(ctx context.Context) (transport.Transport, error) {
		if dials.Add(1) == 1 {
			return first, nil
		}
		return second, nil
	}
	cli := New("test", "0.1", dial, WithPingInterval(-1))
	defer cli.Close()
	require.NoError(t, cli.Connect(context.Background()))

	first.fail(errors.New("connection reset"))

	waitFor(t, 5*time.Second, func() bool {
		return cli.State() == StateReady && dials.Load() == 2
	})
	methods := second.sentMethods()
	require.GreaterOrEqual(t, len(methods), 2, "reconnect must redo the handshake")
	assert.Equal(t, schema.MethodInitialize, methods[0])

	// the session is usable again on the new transport
	_, err := cli.Ping(context.Background())
	assert.NoError(t, err)

	// exactly one reconnect happened, no spurious extra dials
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), dials.Load())
}

func TestCloseDuringReconnectStaysClosed(t *testing.T) {
	ft := newFakeTransport()
	var dials atomic.Int32
	dial := func(ctx context.Context) (transport.Transport, error) {
		if dials.Add(1) == 1 {
			return ft, nil
		}
		return nil, errors.New("server still down")
	}
	cli := New("test", "0.1", dial, WithPingInterval(-1))
	require.NoError(t, cli.Connect(context.Background()))

	ft.fail(errors.New("connection reset"))
	waitFor(t, time.Second, func() bool {
		return cli.State() == StateReconnecting
	})
	require.NoError(t, cli.Close())

	// let the reconnect loop observe the closed session and wind down
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, StateClosed, cli.State(), "explicit close must survive an abandoned reconnect")
	assert.ErrorIs(t, cli.Connect(context.Background()), ErrConnectionClosed)
}

func TestConnectionLossFailsInflight(t *testing.T) {
	ft := newFakeTransport()
	ft.handle(schema.MethodToolsCall, func(*jsonrpc.Message) *jsonrpc.Message {
		return nil
	})
	cli := newTestClient(t, ft, WithAutoReconnect(false))
	require.NoError(t, cli.Connect(context.Background()))

	errCh := make(chan error, 1)
	go func() {
		_, err := cli.CallTool(context.Background(), &schema.CallToolRequestParams{Name: "slow"})
		errCh <- err
	}()
	waitFor(t, time.Second, func() bool {
		for _, method := range ft.sentMethods() {
			if method == schema.MethodToolsCall {
				return true
			}
		}
		return false
	})

	ft.fail(errors.New("broken pipe"))
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrConnectionClosed)
	case <-time.After(time.Second):
		t.Fatal("in-flight request not resolved on connection loss")
	}
	waitFor(t, time.Second, func() bool {
		return cli.State() == StateDisconnected
	})
}

func TestNoReconnectWhenDisabled(t *testing.T) {
	ft := newFakeTransport()
	var dials atomic.Int32
	dial := func(ctx context.Context) (transport.Transport, error) {
		dials.Add(1)
		return ft, nil
	}
	cli := New("test", "0.1", dial, WithPingInterval(-1), WithAutoReconnect(false))
	defer cli.Close()
	require.NoError(t, cli.Connect(context.Background()))

	ft.fail(errors.New("gone"))
	waitFor(t, time.Second, func() bool {
		return cli.State() == StateDisconnected
	})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), dials.Load())
}

func TestUnhealthySessionClosesTransport(t *testing.T) {
	ft := newFakeTransport()
	ft.handle(schema.MethodPing, func(request *jsonrpc.Message) *jsonrpc.Message {
		return jsonrpc.NewErrorResponse(*request.Id, jsonrpc.NewInternalError("overloaded", nil))
	})
	cli := newTestClient(t, ft,
		WithPingInterval(20*time.Millisecond),
		WithPingTimeout(100*time.Millisecond),
		WithPingFailureThreshold(2),
		WithAutoReconnect(false))
	require.NoError(t, cli.Connect(context.Background()))

	waitFor(t, 5*time.Second, func() bool {
		return ft.isClosed() && cli.State() == StateDisconnected
	})
}

func TestHealthySessionStaysUp(t *testing.T) {
	ft := newFakeTransport()
	cli := newTestClient(t, ft,
		WithPingInterval(10*time.Millisecond),
		WithPingTimeout(100*time.Millisecond),
		WithPingFailureThreshold(2))
	require.NoError(t, cli.Connect(context.Background()))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateReady, cli.State())
	assert.False(t, ft.isClosed())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "closed", StateClosed.String())
}
