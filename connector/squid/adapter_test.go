package squid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/proxy-connector/connector"
)

var (
	userPattern = regexp.MustCompile(`^user_[A-Za-z0-9_-]{1,12}_[A-Za-z0-9_-]{6}$`)
	passPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{16}$`)
)

func createRequest(baseURL string) connector.CreateRequest {
	return connector.CreateRequest{
		Server: connector.ServerDescriptor{
			BaseURL:  baseURL,
			Protocol: connector.ProtocolHTTP,
			APIKey:   "backend-key",
		},
		UserID:    "u1",
		ConfigID:  "cfg123456789",
		ExpiresAt: "2025-01-01T00:00:00Z",
	}
}

func TestCreateUsesBackendResponse(t *testing.T) {
	t.Parallel()

	var gotPayload map[string]string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/users", r.URL.Path)
		require.Equal(t, "backend-key", r.Header.Get("X-API-Key"), "api key header")
		require.Equal(t, "Bearer backend-key", r.Header.Get("Authorization"), "bearer header")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"ext-1","host":"proxy.example","port":3128,"user":"u","pass":"p"}`))
	}))
	t.Cleanup(backend.Close)

	out := New().Create(context.Background(), createRequest(backend.URL))

	require.True(t, out.Success, "outcome: %+v", out)
	require.Equal(t, "ext-1", out.ExternalID)
	require.NotNil(t, out.Credentials)
	require.NotNil(t, out.Credentials.HTTP)
	assert.Equal(t, "proxy.example", out.Credentials.HTTP.Host)
	assert.Equal(t, 3128, out.Credentials.HTTP.Port)
	assert.Equal(t, "u", out.Credentials.HTTP.User)
	assert.Equal(t, "p", out.Credentials.HTTP.Pass)

	assert.Equal(t, "2025-01-01T00:00:00Z", gotPayload["expiresAt"])
	assert.Regexp(t, userPattern, gotPayload["user"])
	assert.Regexp(t, passPattern, gotPayload["pass"])
	assert.True(t, strings.HasPrefix(gotPayload["user"], "user_cfg123456789_"), "username carries the truncated config id")
}

func TestCreateFallsBackToGeneratedCredentials(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(backend.Close)

	out := New().Create(context.Background(), createRequest(backend.URL))

	require.True(t, out.Success, "outcome: %+v", out)
	require.NotNil(t, out.Credentials.HTTP)
	assert.Equal(t, "127.0.0.1", out.Credentials.HTTP.Host, "host falls back to the request hostname")
	assert.Equal(t, 3128, out.Credentials.HTTP.Port, "port falls back to the proxy convention")
	assert.Regexp(t, userPattern, out.Credentials.HTTP.User)
	assert.Regexp(t, passPattern, out.Credentials.HTTP.Pass)
	assert.Equal(t, out.Credentials.HTTP.User, out.ExternalID, "external id falls back to the generated user")
}

func TestCreateGeneratesFreshCredentialsPerCall(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(backend.Close)

	adapter := New()
	first := adapter.Create(context.Background(), createRequest(backend.URL))
	second := adapter.Create(context.Background(), createRequest(backend.URL))

	require.True(t, first.Success)
	require.True(t, second.Success)
	assert.NotEqual(t, first.Credentials.HTTP.User, second.Credentials.HTTP.User, "usernames must differ")
	assert.NotEqual(t, first.Credentials.HTTP.Pass, second.Credentials.HTTP.Pass, "passwords must differ")
}

func TestCreateBackendFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{
			name:        "body carried into message",
			status:      http.StatusBadRequest,
			body:        "user quota exceeded",
			wantMessage: "user quota exceeded",
		},
		{
			name:        "empty body reports status",
			status:      http.StatusInternalServerError,
			wantMessage: "HTTP 500",
		},
		{
			name:        "long body truncated",
			status:      http.StatusBadGateway,
			body:        strings.Repeat("z", 4096),
			wantMessage: strings.Repeat("z", 300),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			t.Cleanup(backend.Close)

			out := New().Create(context.Background(), createRequest(backend.URL))

			require.False(t, out.Success)
			require.Equal(t, ErrCreateFailed, out.Error)
			require.Equal(t, tt.wantMessage, out.Message)
		})
	}
}

func TestCreateTransportFailure(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close()

	out := New().Create(context.Background(), createRequest(backend.URL))

	require.False(t, out.Success)
	require.Equal(t, ErrBackend, out.Error)
	require.NotEmpty(t, out.Message)
}

func TestRevokeNotFoundIsSuccess(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/users/ext-1", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(backend.Close)

	out := New().Revoke(context.Background(), connector.RevokeRequest{
		Server:     connector.ServerDescriptor{BaseURL: backend.URL, Protocol: connector.ProtocolHTTP},
		ExternalID: "ext-1",
		ConfigID:   "cfg123456789",
	})

	require.True(t, out.Success)
	require.Empty(t, out.Error)
}

func TestRevokeBackendFailure(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(backend.Close)

	out := New().Revoke(context.Background(), connector.RevokeRequest{
		Server:     connector.ServerDescriptor{BaseURL: backend.URL, Protocol: connector.ProtocolHTTP},
		ExternalID: "ext-1",
		ConfigID:   "cfg123456789",
	})

	require.False(t, out.Success)
	require.Equal(t, ErrRevokeFailed, out.Error)
	require.Equal(t, "HTTP 500", out.Message)
}

func TestRevokeTransportFailure(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close()

	out := New().Revoke(context.Background(), connector.RevokeRequest{
		Server:     connector.ServerDescriptor{BaseURL: backend.URL, Protocol: connector.ProtocolHTTP},
		ExternalID: "ext-1",
		ConfigID:   "cfg123456789",
	})

	require.False(t, out.Success)
	require.Equal(t, ErrBackend, out.Error)
}

func TestRandomStringAlphabet(t *testing.T) {
	t.Parallel()

	for range 32 {
		s, err := randomString(16)
		require.NoError(t, err)
		require.Len(t, s, 16)
		require.Regexp(t, passPattern, s)
	}
}
