package main

import (
	"encoding/json"
	"net/http"

	"github.com/gosuda/proxy-connector/connector"
	"github.com/gosuda/proxy-connector/connector/registry"
)

// apiHandler serves the v1 provisioning routes. It owns no state beyond the
// injected dispatcher and registry, both immutable.
type apiHandler struct {
	dispatcher *connector.Dispatcher
	registry   *registry.Registry
}

// configRequest is the envelope shared by the create/revoke/extend routes.
// Servers resolve either by registry id or from an inline descriptor.
type configRequest struct {
	ServerID   string                      `json:"serverId"`
	Server     *connector.ServerDescriptor `json:"server"`
	Protocol   connector.Protocol          `json:"protocol"`
	UserID     string                      `json:"userId"`
	ConfigID   string                      `json:"configId"`
	ExpiresAt  string                      `json:"expiresAt"`
	ExternalID string                      `json:"externalId"`
	Meta       map[string]any              `json:"meta"`
}

// createResponse echoes the request identifiers alongside the issued
// credential payload.
type createResponse struct {
	Success     bool                   `json:"success"`
	ConfigID    string                 `json:"configId"`
	Protocol    connector.Protocol     `json:"protocol"`
	Credentials *connector.Credentials `json:"credentials,omitempty"`
	ExternalID  string                 `json:"externalId,omitempty"`
}

func (h *apiHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "version": version})
}

func (h *apiHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	if req.UserID == "" || req.ConfigID == "" || req.ExpiresAt == "" {
		badRequest(w, "Missing userId, configId or expiresAt")
		return
	}

	srv, ok := h.resolveServer(req)
	if !ok {
		badRequest(w, `Missing or invalid "server" or "serverId"`)
		return
	}
	srv.Protocol = req.Protocol

	outcome := h.dispatcher.Create(r.Context(), connector.CreateRequest{
		Server:    srv,
		UserID:    req.UserID,
		ConfigID:  req.ConfigID,
		ExpiresAt: req.ExpiresAt,
		Meta:      req.Meta,
	})
	if !outcome.Success {
		writeJSON(w, http.StatusInternalServerError, outcome)
		return
	}

	writeJSON(w, http.StatusOK, createResponse{
		Success:     true,
		ConfigID:    req.ConfigID,
		Protocol:    req.Protocol,
		Credentials: outcome.Credentials,
		ExternalID:  outcome.ExternalID,
	})
}

func (h *apiHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	if req.ExternalID == "" || req.ConfigID == "" {
		badRequest(w, "Missing externalId or configId")
		return
	}

	srv, ok := h.resolveServer(req)
	if !ok {
		badRequest(w, `Missing or invalid "server" or "serverId"`)
		return
	}
	srv.Protocol = req.Protocol

	outcome := h.dispatcher.Revoke(r.Context(), connector.RevokeRequest{
		Server:     srv,
		ExternalID: req.ExternalID,
		ConfigID:   req.ConfigID,
	})
	if !outcome.Success {
		writeJSON(w, http.StatusInternalServerError, outcome)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *apiHandler) handleExtend(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	if req.ExternalID == "" || req.ConfigID == "" || req.ExpiresAt == "" {
		badRequest(w, "Missing externalId, configId or expiresAt")
		return
	}

	srv, ok := h.resolveServer(req)
	if !ok {
		badRequest(w, `Missing or invalid "server" or "serverId"`)
		return
	}
	srv.Protocol = req.Protocol

	outcome := h.dispatcher.Extend(r.Context(), connector.ExtendRequest{
		Server:     srv,
		ExternalID: req.ExternalID,
		ConfigID:   req.ConfigID,
		ExpiresAt:  req.ExpiresAt,
	})
	if !outcome.Success {
		writeJSON(w, http.StatusInternalServerError, outcome)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// decodeRequest parses the shared envelope and validates the protocol tag.
func (h *apiHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (configRequest, bool) {
	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid JSON body")
		return configRequest{}, false
	}
	if !req.Protocol.Valid() {
		badRequest(w, "Invalid protocol (http | wireguard)")
		return configRequest{}, false
	}
	return req, true
}

// resolveServer prefers the registry entry for serverId; an unknown id falls
// through to the inline descriptor, which must carry at least a base URL and
// a valid protocol.
func (h *apiHandler) resolveServer(req configRequest) (connector.ServerDescriptor, bool) {
	if req.ServerID != "" {
		if srv, ok := h.registry.Lookup(req.ServerID); ok {
			return srv, true
		}
	}

	if req.Server == nil || req.Server.BaseURL == "" || !req.Server.Protocol.Valid() {
		return connector.ServerDescriptor{}, false
	}
	srv := *req.Server
	if srv.ID == "" {
		srv.ID = "unknown"
	}
	return srv, true
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:   "INVALID_REQUEST",
		Message: message,
	})
}
