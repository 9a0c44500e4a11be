// Package wgeasy implements the backend client contract against a
// wg-easy-style VPN management API. Creating a credential is a three-step
// sequence: resolve authentication (session login or Basic headers), create
// the client, then fetch its generated configuration file.
package wgeasy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/proxy-connector/connector"
)

// Error kinds reported by this adapter.
const (
	ErrCreateFailed = "WG_EASY_CREATE_FAILED"
	ErrNoClientID   = "WG_EASY_NO_CLIENT_ID"
	ErrConfigFailed = "WG_EASY_CONFIG_FAILED"
	ErrRevokeFailed = "WG_EASY_REVOKE_FAILED"
	ErrBackend      = "WG_EASY_ERROR"
)

const (
	// defaultManagementPort is the conventional wg-easy management port,
	// appended when the base URL carries none.
	defaultManagementPort = 51821

	// defaultClientPath is the client endpoint of current wg-easy releases;
	// older deployments override it via the descriptor's ClientPath.
	defaultClientPath = "/api/client"

	// maxClientNameLen is the backend's name-length limit.
	maxClientNameLen = 64
)

// Adapter provisions VPN clients over the wg-easy management API. It holds no
// state across calls; each operation acquires its own session.
type Adapter struct {
	httpc *http.Client
}

// New returns a wg-easy adapter using a default HTTP client.
func New() *Adapter {
	return &Adapter{httpc: &http.Client{}}
}

func (a *Adapter) Protocol() connector.Protocol { return connector.ProtocolWireGuard }

// Create registers a named client with the backend and fetches its generated
// configuration. A response without a client id is a contract mismatch worth
// its own error kind; a failed configuration fetch after a successful create
// is partial server-side state and is likewise reported distinctly.
func (a *Adapter) Create(ctx context.Context, req connector.CreateRequest) connector.CreateOutcome {
	base, err := managementURL(req.Server)
	if err != nil {
		return createError(err)
	}

	creds, err := a.resolveAuth(ctx, base, req.Server)
	if err != nil {
		return createError(err)
	}

	name := req.UserID + "_" + req.ConfigID
	if len(name) > maxClientNameLen {
		name = name[:maxClientNameLen]
	}
	clientPath := req.Server.ClientPath
	if clientPath == "" {
		clientPath = defaultClientPath
	}

	log.Info().Str("base_url", base).Str("name", name).Msg("[WgEasy] create client")

	payload, err := json.Marshal(map[string]string{
		"name":      name,
		"expiresAt": req.ExpiresAt,
	})
	if err != nil {
		return createError(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+clientPath, bytes.NewReader(payload))
	if err != nil {
		return createError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	creds.apply(httpReq)

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
			Str("body", msg).
			Msg("[WgEasy] create failed")
		return connector.CreateOutcome{Error: ErrCreateFailed, Message: msg}
	}

	var created struct {
		ClientID string `json:"clientId"`
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &created); err != nil {
			return createError(fmt.Errorf("decode create response: %w", err))
		}
	}
	if created.ClientID == "" {
		return connector.CreateOutcome{
			Error:   ErrNoClientID,
			Message: "No clientId in response",
		}
	}

	confURL := base + clientPath + "/" + url.PathEscape(created.ClientID) + "/configuration"
	confReq, err := http.NewRequestWithContext(ctx, http.MethodGet, confURL, nil)
	if err != nil {
		return createError(err)
	}
	creds.apply(confReq)

	confResp, err := a.httpc.Do(confReq)
	if err != nil {
		return createError(err)
	}
	defer confResp.Body.Close()

	if !connector.IsSuccess(confResp.StatusCode) {
		io.Copy(io.Discard, confResp.Body)
		// The client already exists server-side; name the id so the operator
		// can revoke it manually.
		return connector.CreateOutcome{
			Error:   ErrConfigFailed,
			Message: fmt.Sprintf("Failed to get config: HTTP %d (clientId %s)", confResp.StatusCode, created.ClientID),
		}
	}

	conf, err := io.ReadAll(confResp.Body)
	if err != nil {
		return createError(err)
	}

	return connector.CreateOutcome{
		Success:     true,
		Credentials: &connector.Credentials{WireGuard: &connector.WireGuardCredentials{Conf: string(conf)}},
		ExternalID:  created.ClientID,
	}
}

// Revoke deletes the client by its external id. A 404 from the backend is
// success: the client is already gone.
func (a *Adapter) Revoke(ctx context.Context, req connector.RevokeRequest) connector.RevokeOutcome {
	base, err := managementURL(req.Server)
	if err != nil {
		return revokeError(err)
	}

	creds, err := a.resolveAuth(ctx, base, req.Server)
	if err != nil {
		return revokeError(err)
	}

	clientPath := req.Server.ClientPath
	if clientPath == "" {
		clientPath = defaultClientPath
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, base+clientPath+"/"+url.PathEscape(req.ExternalID), nil)
	if err != nil {
		return revokeError(err)
	}
	creds.apply(httpReq)

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

// managementURL normalizes a descriptor base URL into the management
// endpoint. A URL that already encodes a port is used verbatim; otherwise the
// descriptor port, or the conventional management port, is appended.
func managementURL(srv connector.ServerDescriptor) (string, error) {
	raw := strings.TrimSuffix(strings.TrimSpace(srv.BaseURL), "/")
	if raw == "" {
		return "", fmt.Errorf("server base URL is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", srv.BaseURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid base URL %q: missing host", srv.BaseURL)
	}

	if u.Port() == "" {
		port := srv.Port
		if port == 0 {
			port = defaultManagementPort
		}
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
	}

	return strings.TrimSuffix(u.String(), "/"), nil
}

func createError(err error) connector.CreateOutcome {
	log.Error().Err(err).Msg("[WgEasy] create error")
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
