package mcpc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolproto/mcpc/client"
)

func TestPingIntervalPrecedence(t *testing.T) {
	options := &ClientOptions{}
	assert.Equal(t, time.Duration(0), options.pingInterval())

	options.PingIntervalSeconds = 15
	assert.Equal(t, 15*time.Second, options.pingInterval())

	options.PingInterval = time.Minute
	assert.Equal(t, time.Minute, options.pingInterval(), "the duration setting wins over the deprecated one")

	options.PingInterval = -1
	assert.Equal(t, time.Duration(-1), options.pingInterval(), "a negative interval disables probing")
}

func TestGetTransportValidation(t *testing.T) {
	testCases := []struct {
		description string
		transport   ClientTransport
	}{
		{description: "no type"},
		{
			description: "stdio without command",
			transport:   ClientTransport{Type: "stdio"},
		},
		{
			description: "sse without URL",
			transport:   ClientTransport{Type: "sse"},
		},
		{
			description: "streamable without URL",
			transport:   ClientTransport{Type: "streamable"},
		},
	}
	for _, testCase := range testCases {
		options := &ClientOptions{Transport: testCase.transport}
		_, err := options.getTransport(context.Background())
		assert.Error(t, err, testCase.description)
	}
}

func TestGetTransportConstruction(t *testing.T) {
	stdioOptions := &ClientOptions{Transport: ClientTransport{
		Type:                 "stdio",
		ClientTransportStdio: ClientTransportStdio{Command: "cat"},
	}}
	tr, err := stdioOptions.getTransport(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tr)

	httpOptions := &ClientOptions{Transport: ClientTransport{
		Type:                "streamable",
		ClientTransportHTTP: ClientTransportHTTP{URL: "http://127.0.0.1:1/mcp"},
	}}
	tr, err = httpOptions.getTransport(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tr)
}

func TestNewClientStaysDisconnected(t *testing.T) {
	options := &ClientOptions{Transport: ClientTransport{
		Type:                 "stdio",
		ClientTransportStdio: ClientTransportStdio{Command: "cat"},
	}}
	cli, err := NewClient(options)
	require.NoError(t, err)
	defer cli.Close()
	assert.Equal(t, client.StateDisconnected, cli.State())
	assert.Equal(t, "mcpc", options.Name, "Init fills the default identity")
}

func TestAuthTransportSharedAcrossDials(t *testing.T) {
	options := &ClientOptions{
		Transport: ClientTransport{
			Type:                "streamable",
			ClientTransportHTTP: ClientTransportHTTP{URL: "http://127.0.0.1:1/mcp"},
		},
		Auth: &ClientAuth{TokenStorePath: filepath.Join(t.TempDir(), "tokens.json")},
	}
	cli, err := NewClient(options)
	require.NoError(t, err)
	defer cli.Close()

	require.NotNil(t, options.AuthStore(), "auth store must be materialized with the client")

	first, err := options.getHTTPClient()
	require.NoError(t, err)
	second, err := options.getHTTPClient()
	require.NoError(t, err)
	assert.Same(t, first, second, "reconnects must reuse the HTTP client and its token store")
}

func TestCookieJarPathBuildsJar(t *testing.T) {
	options := &ClientOptions{CookieJarPath: filepath.Join(t.TempDir(), "cookies.json")}
	httpClient, err := options.getHTTPClient()
	require.NoError(t, err)
	require.NotNil(t, httpClient)
	assert.NotNil(t, httpClient.Jar)
}

func TestNoAuthNoHTTPClient(t *testing.T) {
	options := &ClientOptions{}
	httpClient, err := options.getHTTPClient()
	require.NoError(t, err)
	assert.Nil(t, httpClient)
	assert.Nil(t, options.AuthStore())
}
