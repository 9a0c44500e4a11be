package wgeasy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/proxy-connector/connector"
)

// sessionPath is the wg-easy login endpoint; deployments without it simply
// return a non-2xx status, which the fallback logic absorbs.
const sessionPath = "/api/session"

// auth is the authentication material resolved once per operation and
// attached to every backend call of that operation. It is never cached across
// operations.
type auth struct {
	cookies []*http.Cookie
	basic   string
}

func (a auth) apply(req *http.Request) {
	for _, c := range a.cookies {
		req.AddCookie(c)
	}
	if a.basic != "" {
		req.Header.Set("Authorization", a.basic)
	}
}

// basicHeader builds the Basic credentials for a descriptor. The username
// defaults to admin; the password falls back to the API key for deployments
// that hand out a single management secret.
func basicHeader(srv connector.ServerDescriptor) string {
	username := srv.Username
	if username == "" {
		username = "admin"
	}
	password := srv.Password
	if password == "" {
		password = srv.APIKey
	}
	raw := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return "Basic " + raw
}

// resolveAuth picks the auth strategy for one operation. Precedence is fixed:
// session login first when the mode asks for it, Basic headers as the
// fallback. In session-required mode a failed login is a hard error carrying
// the original session failure.
func (a *Adapter) resolveAuth(ctx context.Context, base string, srv connector.ServerDescriptor) (auth, error) {
	mode := srv.AuthMode
	if mode == "" {
		mode = connector.AuthModeBasic
	}

	if mode == connector.AuthModeBasic {
		return auth{basic: basicHeader(srv)}, nil
	}

	cookies, err := a.sessionLogin(ctx, base, srv)
	if err == nil {
		return auth{cookies: cookies}, nil
	}

	if mode == connector.AuthModeSessionRequired {
		return auth{}, fmt.Errorf("session login: %w", err)
	}

	// Session endpoint unavailable or rejected the login (two-factor
	// deployments do this); continue with Basic headers.
	log.Warn().Err(err).Str("base_url", base).Msg("[WgEasy] session login failed, falling back to basic auth")
	return auth{basic: basicHeader(srv)}, nil
}

// sessionLogin posts the credentials to the session endpoint and captures
// the session cookie from the response.
func (a *Adapter) sessionLogin(ctx context.Context, base string, srv connector.ServerDescriptor) ([]*http.Cookie, error) {
	username := srv.Username
	if username == "" {
		username = "admin"
	}
	password := srv.Password
	if password == "" {
		password = srv.APIKey
	}

	payload, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+sessionPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if !connector.IsSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, connector.TruncateMessage(string(body)))
	}

	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return nil, fmt.Errorf("no session cookie in response")
	}
	return cookies, nil
}
