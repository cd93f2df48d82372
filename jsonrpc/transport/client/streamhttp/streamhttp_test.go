package streamhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolproto/mcpc/jsonrpc"
)

func TestUnaryExchange(t *testing.T) {
	var mu sync.Mutex
	var sessionSeen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.Error(w, "no stream", http.StatusMethodNotAllowed)
		case http.MethodPost:
			mu.Lock()
			sessionSeen = append(sessionSeen, r.Header.Get("Mcp-Session-Id"))
			mu.Unlock()
			body, _ := io.ReadAll(r.Body)
			request, err := jsonrpc.Parse(body)
			require.NoError(t, err)
			if request.IsNotification() {
				w.WriteHeader(http.StatusAccepted)
				return
			}
			response, err := jsonrpc.NewResponse(*request.Id, map[string]string{"echo": request.Method})
			require.NoError(t, err)
			data, err := json.Marshal(response)
			require.NoError(t, err)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Mcp-Session-Id", "sess-1")
			_, _ = w.Write(data)
		}
	}))
	defer server.Close()

	tr := New(server.URL)
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()
	assert.False(t, tr.Streaming())

	request, err := jsonrpc.NewRequest(jsonrpc.NewNumberID(1), "ping", nil)
	require.NoError(t, err)
	require.NoError(t, tr.Send(context.Background(), request))

	select {
	case msg := <-tr.Messages():
		require.NotNil(t, msg)
		assert.True(t, msg.IsResponse())
		assert.Equal(t, "1", msg.Id.String())
	case <-time.After(5 * time.Second):
		t.Fatal("no reply delivered")
	}

	notification, err := jsonrpc.NewNotification("notifications/initialized", nil)
	require.NoError(t, err)
	require.NoError(t, tr.Send(context.Background(), notification))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sessionSeen, 2)
	assert.Empty(t, sessionSeen[0], "no session before the server assigned one")
	assert.Equal(t, "sess-1", sessionSeen[1], "assigned session id must ride every later exchange")
}

func TestPerRequestStreamUpgrade(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.NotFound(w, r)
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			request, err := jsonrpc.Parse(body)
			require.NoError(t, err)
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			flusher := w.(http.Flusher)
			fmt.Fprintf(w, "data: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/progress\",\"params\":{\"progress\":0.5}}\n\n")
			flusher.Flush()
			response, err := jsonrpc.NewResponse(*request.Id, map[string]string{"done": "yes"})
			require.NoError(t, err)
			data, err := json.Marshal(response)
			require.NoError(t, err)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}))
	defer server.Close()

	tr := New(server.URL)
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()

	request, err := jsonrpc.NewRequest(jsonrpc.NewNumberID(5), "tools/call", nil)
	require.NoError(t, err)
	require.NoError(t, tr.Send(context.Background(), request))

	var received []*jsonrpc.Message
	for len(received) < 2 {
		select {
		case msg := <-tr.Messages():
			received = append(received, msg)
		case <-time.After(5 * time.Second):
			t.Fatal("upgraded stream messages not delivered")
		}
	}
	assert.Equal(t, "notifications/progress", received[0].Method)
	assert.True(t, received[1].IsResponse())
	assert.Equal(t, "5", received[1].Id.String())
}

func TestStandingStream(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "POST unsupported in this test", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "data: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/tools/list_changed\"}\n\n")
		flusher.Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	tr := New(server.URL)
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()
	assert.True(t, tr.Streaming())

	select {
	case msg := <-tr.Messages():
		require.NotNil(t, msg)
		assert.Equal(t, "notifications/tools/list_changed", msg.Method)
	case <-time.After(5 * time.Second):
		t.Fatal("standing stream message not delivered")
	}
}

func TestStandingStreamLossIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		// return immediately: the standing stream dies
	}))
	defer server.Close()

	tr := New(server.URL)
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()
	require.True(t, tr.Streaming())

	select {
	case _, ok := <-tr.Messages():
		assert.False(t, ok, "inbound stream must close when the standing stream dies")
	case <-time.After(5 * time.Second):
		t.Fatal("transport did not observe standing stream loss")
	}
	assert.Error(t, tr.Err())
}

func TestCloseSendsSessionDelete(t *testing.T) {
	deleted := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.Error(w, "no stream", http.StatusMethodNotAllowed)
		case http.MethodPost:
			w.Header().Set("Mcp-Session-Id", "sess-9")
			w.WriteHeader(http.StatusAccepted)
		case http.MethodDelete:
			deleted <- r.Header.Get("Mcp-Session-Id")
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	tr := New(server.URL)
	require.NoError(t, tr.Open(context.Background()))

	notification, err := jsonrpc.NewNotification("notifications/initialized", nil)
	require.NoError(t, err)
	require.NoError(t, tr.Send(context.Background(), notification))
	require.NoError(t, tr.Close())

	select {
	case id := <-deleted:
		assert.Equal(t, "sess-9", id)
	case <-time.After(5 * time.Second):
		t.Fatal("no DELETE on close")
	}
}
