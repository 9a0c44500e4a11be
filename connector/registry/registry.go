// Package registry loads the static server list the request boundary uses to
// resolve backend servers by opaque id.
package registry

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/proxy-connector/connector"
)

// storedServer is one entry of the servers file, keyed by server id.
type storedServer struct {
	BaseURL    string             `json:"baseUrl"`
	Username   string             `json:"username"`
	Password   string             `json:"password"`
	APIKey     string             `json:"apiKey"`
	Port       int                `json:"port"`
	Protocol   connector.Protocol `json:"protocol"`
	AuthMode   connector.AuthMode `json:"authMode"`
	ClientPath string             `json:"clientPath"`
}

// Registry resolves server descriptors by id. It is populated once by Load
// and read-only afterwards.
type Registry struct {
	servers map[string]connector.ServerDescriptor
}

// Load reads the servers file at path. A missing or empty file yields an
// empty registry; entries without a base URL or protocol are dropped
// silently. Load never fails: a malformed file is logged and treated as
// empty so the service still starts for inline-descriptor callers.
func Load(path string) *Registry {
	reg := &Registry{servers: make(map[string]connector.ServerDescriptor)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Error().Err(err).Str("path", path).Msg("[config] Failed to load servers")
		}
		return reg
	}
	if strings.TrimSpace(string(data)) == "" {
		return reg
	}

	var parsed map[string]storedServer
	if err := json.Unmarshal(data, &parsed); err != nil {
		log.Error().Err(err).Str("path", path).Msg("[config] Failed to parse servers")
		return reg
	}

	for id, s := range parsed {
		if s.BaseURL == "" || s.Protocol == "" {
			continue
		}
		reg.servers[id] = connector.ServerDescriptor{
			ID:         id,
			BaseURL:    s.BaseURL,
			Protocol:   s.Protocol,
			Username:   s.Username,
			Password:   s.Password,
			APIKey:     s.APIKey,
			Port:       s.Port,
			AuthMode:   s.AuthMode,
			ClientPath: s.ClientPath,
		}
	}

	log.Info().Int("count", len(reg.servers)).Str("path", path).Msg("[config] Loaded servers")
	return reg
}

// Lookup returns the descriptor stored under id.
func (r *Registry) Lookup(id string) (connector.ServerDescriptor, bool) {
	srv, ok := r.servers[id]
	return srv, ok
}

// Len reports how many servers the registry holds.
func (r *Registry) Len() int {
	return len(r.servers)
}
