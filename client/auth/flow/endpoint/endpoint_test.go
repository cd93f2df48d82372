package endpoint

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackDeliversCode(t *testing.T) {
	server, err := New()
	require.NoError(t, err)
	go server.Start()

	go func() {
		time.Sleep(10 * time.Millisecond)
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/callback?code=abc123&state=s", server.Port))
		if err == nil {
			resp.Body.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Wait(ctx))
	assert.Equal(t, "abc123", server.AuthCode())
}

func TestCallbackPropagatesError(t *testing.T) {
	server, err := New()
	require.NoError(t, err)
	go server.Start()

	go func() {
		time.Sleep(10 * time.Millisecond)
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/callback?error=access_denied", server.Port))
		if err == nil {
			resp.Body.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = server.Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_denied")
}

func TestWaitHonorsContext(t *testing.T) {
	server, err := New()
	require.NoError(t, err)
	go server.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, server.Wait(ctx), context.DeadlineExceeded)
}
