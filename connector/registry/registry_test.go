package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/proxy-connector/connector"
)

func writeServers(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servers.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeServers(t, `{
		"proxy-eu": {
			"baseUrl": "http://proxy.example",
			"protocol": "http",
			"apiKey": "k1",
			"port": 3128
		},
		"vpn-us": {
			"baseUrl": "http://vpn.example",
			"protocol": "wireguard",
			"username": "admin",
			"password": "pw",
			"authMode": "session-optional",
			"clientPath": "/api/wireguard/client"
		}
	}`)

	reg := Load(path)
	require.Equal(t, 2, reg.Len())

	proxy, ok := reg.Lookup("proxy-eu")
	require.True(t, ok)
	assert.Equal(t, "proxy-eu", proxy.ID)
	assert.Equal(t, "http://proxy.example", proxy.BaseURL)
	assert.Equal(t, connector.ProtocolHTTP, proxy.Protocol)
	assert.Equal(t, "k1", proxy.APIKey)
	assert.Equal(t, 3128, proxy.Port)

	vpn, ok := reg.Lookup("vpn-us")
	require.True(t, ok)
	assert.Equal(t, connector.AuthModeSessionOptional, vpn.AuthMode)
	assert.Equal(t, "/api/wireguard/client", vpn.ClientPath)

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
}

func TestLoadDropsIncompleteEntries(t *testing.T) {
	t.Parallel()

	path := writeServers(t, `{
		"no-url": {"protocol": "http"},
		"no-protocol": {"baseUrl": "http://proxy.example"},
		"good": {"baseUrl": "http://proxy.example", "protocol": "http"}
	}`)

	reg := Load(path)
	require.Equal(t, 1, reg.Len())

	_, ok := reg.Lookup("good")
	assert.True(t, ok)
	_, ok = reg.Lookup("no-url")
	assert.False(t, ok)
	_, ok = reg.Lookup("no-protocol")
	assert.False(t, ok)
}

func TestLoadToleratesMissingOrBrokenFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "nope.json")
			},
		},
		{
			name: "empty file",
			path: func(t *testing.T) string {
				return writeServers(t, "")
			},
		},
		{
			name: "whitespace only",
			path: func(t *testing.T) string {
				return writeServers(t, "  \n\t")
			},
		},
		{
			name: "malformed json",
			path: func(t *testing.T) string {
				return writeServers(t, "{not json")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg := Load(tt.path(t))
			require.NotNil(t, reg)
			require.Zero(t, reg.Len())
		})
	}
}
