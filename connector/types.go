// Package connector defines the backend client contract shared by every
// protocol adapter, the normalized request/outcome types, and the dispatcher
// that routes provisioning calls to the adapter for a protocol.
package connector

import "context"

// Protocol identifies the backend family a server descriptor belongs to.
type Protocol string

const (
	ProtocolHTTP      Protocol = "http"
	ProtocolWireGuard Protocol = "wireguard"
)

// Valid reports whether p names a known protocol tag.
func (p Protocol) Valid() bool {
	return p == ProtocolHTTP || p == ProtocolWireGuard
}

// AuthMode selects how the WireGuard adapter authenticates against a
// deployment. Deployments differ: some accept plain Basic auth on every call,
// some expose a session login that may or may not be mandatory.
type AuthMode string

const (
	AuthModeBasic           AuthMode = "basic"
	AuthModeSessionOptional AuthMode = "session-optional"
	AuthModeSessionRequired AuthMode = "session-required"
)

// ServerDescriptor identifies one remote backend instance. Descriptors are
// constructed per request or loaded once from the registry and are never
// mutated afterwards.
type ServerDescriptor struct {
	ID       string   `json:"id"`
	BaseURL  string   `json:"baseUrl"`
	Protocol Protocol `json:"protocol"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"`
	APIKey   string   `json:"apiKey,omitempty"`
	Port     int      `json:"port,omitempty"`

	// AuthMode and ClientPath cover wg-easy deployment variants; both are
	// ignored by the HTTP proxy adapter.
	AuthMode   AuthMode `json:"authMode,omitempty"`
	ClientPath string   `json:"clientPath,omitempty"`
}

// CreateRequest asks a backend to issue one credential.
type CreateRequest struct {
	Server    ServerDescriptor
	UserID    string
	ConfigID  string
	ExpiresAt string
	Meta      map[string]any
}

// RevokeRequest asks a backend to remove a previously issued credential.
type RevokeRequest struct {
	Server     ServerDescriptor
	ExternalID string
	ConfigID   string
}

// ExtendRequest asks a backend to move a credential's expiry. Only adapters
// implementing Extender honor it.
type ExtendRequest struct {
	Server     ServerDescriptor
	ExternalID string
	ConfigID   string
	ExpiresAt  string
}

// HTTPCredentials is the credential payload issued by an HTTP proxy backend.
type HTTPCredentials struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	User string `json:"user"`
	Pass string `json:"pass"`
}

// WireGuardCredentials carries the full client configuration file generated
// by a WireGuard backend.
type WireGuardCredentials struct {
	Conf string `json:"conf"`
}

// Credentials is the protocol-tagged credential payload of a successful
// create. Exactly one field is set.
type Credentials struct {
	HTTP      *HTTPCredentials      `json:"http,omitempty"`
	WireGuard *WireGuardCredentials `json:"wireguard,omitempty"`
}

// CreateOutcome is the normalized result of a create operation. Failures are
// expressed through Error/Message, never through a Go error.
type CreateOutcome struct {
	Success     bool         `json:"success"`
	Credentials *Credentials `json:"credentials,omitempty"`
	ExternalID  string       `json:"externalId,omitempty"`
	Error       string       `json:"error,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// RevokeOutcome is the normalized result of a revoke operation.
type RevokeOutcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ExtendOutcome is the normalized result of an extend operation.
type ExtendOutcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Adapter is the contract every backend integration implements. Operations
// capture all failures (network, auth, malformed backend responses) and
// report them as structured outcomes; they never panic or return errors.
//
// Revoke is idempotent by policy: a backend "not found" counts as success
// since the end state, credential absent, is already achieved.
type Adapter interface {
	Protocol() Protocol
	Create(ctx context.Context, req CreateRequest) CreateOutcome
	Revoke(ctx context.Context, req RevokeRequest) RevokeOutcome
}

// Extender is the optional extend capability. The dispatcher detects it with
// a type assertion so "adapter lacks the capability" stays distinguishable
// from "no adapter at all".
type Extender interface {
	Extend(ctx context.Context, req ExtendRequest) ExtendOutcome
}
