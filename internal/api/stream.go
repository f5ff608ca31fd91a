package api

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/contdb/queryview/internal/apply"
	"github.com/contdb/queryview/internal/cache"
	"github.com/contdb/queryview/internal/index"
	"github.com/contdb/queryview/internal/query"
)

// newUpgrader creates a websocket.Upgrader that validates the Origin header
// against the provided allowlist. If allowedOrigins contains "*", all
// origins are permitted (development convenience).
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := false
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
			break
		}
		originSet[o] = struct{}{}
	}

	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return false
			}
			_, ok := originSet[origin]
			return ok
		},
	}
}

// StreamHandler serves GET /api/v1/containers/{container}/apply/stream: a
// WebSocket variant of Apply for queries a client wants to hold open rather
// than poll, one query per connection. The client sends a single
// ApplyRequest text frame; the handler replies with one ApplyResponse frame
// and closes.
type StreamHandler struct {
	registry *Registry
	upgrader websocket.Upgrader

	// Cache and Index are the same optional apply accelerants Handlers
	// carries; both nil-safe, left unset unless the caller assigns them
	// after construction.
	Cache *cache.RegionCache
	Index *index.Manager
}

func NewStreamHandler(registry *Registry, allowedOrigins []string) *StreamHandler {
	return &StreamHandler{
		registry: registry,
		upgrader: newUpgrader(allowedOrigins),
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["container"]
	c, rcxt, err := h.registry.Lookup(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var req ApplyRequest
	if err := conn.ReadJSON(&req); err != nil {
		slog.Warn("stream: failed to read query frame", "error", err)
		return
	}

	wire, err := base64.StdEncoding.DecodeString(req.QueryB64)
	if err != nil {
		_ = conn.WriteJSON(ErrorResponse{Code: ErrCodeInvalidRequest, Message: err.Error()})
		return
	}
	q, err := query.Decode(wire)
	if err != nil {
		_ = conn.WriteJSON(ErrorResponse{Code: ErrCodeInvalidRequest, Message: err.Error()})
		return
	}
	defer q.Close()

	v, _, err := apply.Apply(r.Context(), c, q, &apply.ViewCreationProperties{Cache: h.Cache, Index: h.Index}, rcxt)
	if err != nil {
		slog.Error("stream: apply failed", "container", name, "error", err)
		_ = conn.WriteJSON(ErrorResponse{Code: ErrCodeInternalError, Message: "apply failed"})
		return
	}
	defer v.Free()

	resp := ApplyResponse{}
	for _, ref := range v.ObjRefs.Items() {
		resp.ObjectRefs = append(resp.ObjectRefs, toDTO(ref))
	}
	for _, ref := range v.AttrRefs.Items() {
		resp.AttributeRefs = append(resp.AttributeRefs, toDTO(ref))
	}
	for _, ref := range v.RegRefs.Items() {
		resp.RegionRefs = append(resp.RegionRefs, toDTO(ref))
	}

	if err := conn.WriteJSON(resp); err != nil {
		slog.Warn("stream: failed to write response frame", "error", err)
	}
}
