// Package squid implements the backend client contract against a Squid-style
// HTTP proxy management API: POST /users to issue a proxy account,
// DELETE /users/{id} to revoke it.
package squid

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/proxy-connector/connector"
)

// Error kinds reported by this adapter.
const (
	ErrCreateFailed = "SQUID_CREATE_FAILED"
	ErrRevokeFailed = "SQUID_REVOKE_FAILED"
	ErrBackend      = "SQUID_ERROR"
)

// defaultProxyPort is the conventional Squid listen port, used when the
// backend response omits one.
const defaultProxyPort = 3128

const (
	userPrefixLen = 12
	userSuffixLen = 6
	passwordLen   = 16
)

// Adapter provisions proxy users over the Squid management API. It holds no
// per-call state and is safe for concurrent use.
type Adapter struct {
	httpc *http.Client
}

// New returns a Squid adapter using a default HTTP client.
func New() *Adapter {
	return &Adapter{httpc: &http.Client{}}
}

func (a *Adapter) Protocol() connector.Protocol { return connector.ProtocolHTTP }

// createResponse is the optional response body of the user-creation endpoint.
// Every field may be absent; locally generated values fill the gaps.
type createResponse struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	User string `json:"user"`
	Pass string `json:"pass"`
	ID   string `json:"id"`
}

// Create generates a random username/password pair, registers it with the
// backend, and normalizes the response into credentials.
func (a *Adapter) Create(ctx context.Context, req connector.CreateRequest) connector.CreateOutcome {
	base := strings.TrimSuffix(req.Server.BaseURL, "/")

	suffix, err := randomString(userSuffixLen)
	if err != nil {
		return createError(err)
	}
	pass, err := randomString(passwordLen)
	if err != nil {
		return createError(err)
	}

	prefix := req.ConfigID
	if len(prefix) > userPrefixLen {
		prefix = prefix[:userPrefixLen]
	}
	user := fmt.Sprintf("user_%s_%s", prefix, suffix)

	payload, err := json.Marshal(map[string]string{
		"user":      user,
		"pass":      pass,
		"expiresAt": req.ExpiresAt,
	})
	if err != nil {
		return createError(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/users", bytes.NewReader(payload))
	if err != nil {
		return createError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	setAuthHeaders(httpReq, req.Server)

	resp, err := a.httpc.Do(httpReq)
	if err != nil {
		return createError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return createError(err)
	}

	if !connector.IsSuccess(resp.StatusCode) {
		msg := connector.TruncateMessage(string(body))
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		log.Error().
			Int("status", resp.StatusCode).
			Str("base_url", base).
			Msg("[Squid] create failed")
		return connector.CreateOutcome{Error: ErrCreateFailed, Message: msg}
	}

	var data createResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &data); err != nil {
			return createError(fmt.Errorf("decode create response: %w", err))
		}
	}

	host := data.Host
	if host == "" {
		host = hostnameOf(base)
	}
	port := data.Port
	if port == 0 {
		port = defaultProxyPort
	}
	// External id falls back to the generated username, not a
	// backend-rewritten one.
	externalID := data.ID
	if externalID == "" {
		externalID = user
	}
	if data.User != "" {
		user = data.User
	}
	if data.Pass != "" {
		pass = data.Pass
	}

	return connector.CreateOutcome{
		Success: true,
		Credentials: &connector.Credentials{
			HTTP: &connector.HTTPCredentials{
				Host: host,
				Port: port,
				User: user,
				Pass: pass,
			},
		},
		ExternalID: externalID,
	}
}

// Revoke deletes the proxy user by its external id. A 404 from the backend is
// success: the user is already gone.
func (a *Adapter) Revoke(ctx context.Context, req connector.RevokeRequest) connector.RevokeOutcome {
	base := strings.TrimSuffix(req.Server.BaseURL, "/")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, base+"/users/"+url.PathEscape(req.ExternalID), nil)
	if err != nil {
		return revokeError(err)
	}
	setAuthHeaders(httpReq, req.Server)

	resp, err := a.httpc.Do(httpReq)
	if err != nil {
		return revokeError(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if !connector.IsSuccess(resp.StatusCode) && resp.StatusCode != http.StatusNotFound {
		return connector.RevokeOutcome{
			Error:   ErrRevokeFailed,
			Message: fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
	}

	return connector.RevokeOutcome{Success: true}
}

// setAuthHeaders forwards the API key both as a custom header and as a bearer
// token, covering backends that accept either scheme.
func setAuthHeaders(req *http.Request, srv connector.ServerDescriptor) {
	if srv.APIKey == "" {
		return
	}
	req.Header.Set("X-API-Key", srv.APIKey)
	req.Header.Set("Authorization", "Bearer "+srv.APIKey)
}

// randomString returns n URL-safe characters from a cryptographic source.
func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:n], nil
}

func hostnameOf(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func createError(err error) connector.CreateOutcome {
	return connector.CreateOutcome{
		Error:   ErrBackend,
		Message: connector.TruncateMessage(err.Error()),
	}
}

func revokeError(err error) connector.RevokeOutcome {
	return connector.RevokeOutcome{
		Error:   ErrBackend,
		Message: connector.TruncateMessage(err.Error()),
	}
}
