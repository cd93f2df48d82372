package sse

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolproto/mcpc/jsonrpc"
)

// legacyServer serves the two-endpoint wire: a GET event stream advertising a
// relative POST endpoint, and the POST endpoint itself.
func legacyServer(t *testing.T, posted chan<- *jsonrpc.Message, events <-chan string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/sse", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "event: endpoint\ndata: /message\n\n")
		flusher.Flush()
		for {
			select {
			case data, ok := <-events:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
	mux.HandleFunc("/message", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		msg, err := jsonrpc.Parse(body)
		require.NoError(t, err)
		posted <- msg
		w.WriteHeader(http.StatusAccepted)
	})
	return httptest.NewServer(mux)
}

func TestOpenWaitsForEndpoint(t *testing.T) {
	posted := make(chan *jsonrpc.Message, 4)
	events := make(chan string)
	defer close(events)
	server := legacyServer(t, posted, events)
	defer server.Close()

	tr := New(server.URL + "/sse")
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()

	request, err := jsonrpc.NewRequest(jsonrpc.NewNumberID(1), "initialize", nil)
	require.NoError(t, err)
	require.NoError(t, tr.Send(context.Background(), request))

	select {
	case msg := <-posted:
		assert.Equal(t, "initialize", msg.Method)
	case <-time.After(5 * time.Second):
		t.Fatal("message not posted to the advertised endpoint")
	}
}

func TestStreamMessagesDelivered(t *testing.T) {
	posted := make(chan *jsonrpc.Message, 4)
	events := make(chan string, 4)
	defer close(events)
	server := legacyServer(t, posted, events)
	defer server.Close()

	tr := New(server.URL + "/sse")
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()

	events <- `{"jsonrpc":"2.0","method":"notifications/tools/list_changed"}`
	events <- `malformed`
	events <- `{"jsonrpc":"2.0","id":3,"result":{}}`

	select {
	case msg := <-tr.Messages():
		assert.Equal(t, "notifications/tools/list_changed", msg.Method)
	case <-time.After(5 * time.Second):
		t.Fatal("first event not delivered")
	}
	select {
	case msg := <-tr.Messages():
		assert.True(t, msg.IsResponse(), "malformed event must be dropped, not break the stream")
		assert.Equal(t, "3", msg.Id.String())
	case <-time.After(5 * time.Second):
		t.Fatal("event after a malformed one not delivered")
	}
}

func TestStreamLossIsTerminal(t *testing.T) {
	posted := make(chan *jsonrpc.Message, 1)
	events := make(chan string)
	server := legacyServer(t, posted, events)
	defer server.Close()

	tr := New(server.URL + "/sse")
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()

	close(events) // server drops the stream

	select {
	case _, ok := <-tr.Messages():
		assert.False(t, ok, "inbound stream must close when the event stream dies")
	case <-time.After(5 * time.Second):
		t.Fatal("transport did not observe stream loss")
	}
	assert.Error(t, tr.Err())
}

func TestOpenRejectsNonStreamStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer server.Close()

	tr := New(server.URL + "/sse")
	assert.Error(t, tr.Open(context.Background()))
}

func TestOpenHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done() // never advertise an endpoint
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	tr := New(server.URL + "/sse")
	err := tr.Open(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
