package api

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/contdb/queryview/internal/apply"
	"github.com/contdb/queryview/internal/cache"
	"github.com/contdb/queryview/internal/events"
	"github.com/contdb/queryview/internal/index"
	"github.com/contdb/queryview/internal/materialize"
	"github.com/contdb/queryview/internal/query"
	"github.com/contdb/queryview/internal/ref"
)

// ApplyRequest carries a wire-encoded query (see internal/query/codec.go),
// base64-encoded so it travels as JSON.
type ApplyRequest struct {
	QueryB64 string `json:"query_b64"`
}

// ReferenceDTO is the JSON shape a ref.Reference is rendered as in
// responses.
type ReferenceDTO struct {
	Kind       string   `json:"kind"`
	Container  string   `json:"container"`
	ObjectPath string   `json:"object_path"`
	AttrName   string   `json:"attr_name,omitempty"`
	Offsets    []uint32 `json:"offsets,omitempty"`
}

func toDTO(r *ref.Reference) ReferenceDTO {
	dto := ReferenceDTO{
		Kind:       r.Kind().String(),
		Container:  r.ContainerName(),
		ObjectPath: r.ObjectPath(),
	}
	if r.Kind() == ref.Attribute {
		dto.AttrName = r.AttrName()
	}
	if r.Kind() == ref.DatasetRegion {
		dto.Offsets = r.Selection().Offsets()
	}
	return dto
}

// ApplyResponse summarizes a view without requiring the client to decode
// the wire reference format.
type ApplyResponse struct {
	ObjectRefs    []ReferenceDTO `json:"object_refs,omitempty"`
	AttributeRefs []ReferenceDTO `json:"attribute_refs,omitempty"`
	RegionRefs    []ReferenceDTO `json:"region_refs,omitempty"`
}

// Handlers bundles the registry and event publisher the query/view
// handlers depend on. Cache and Index are optional accelerants
// (internal/cache, internal/index); either may be left nil, in which case
// apply.Apply falls back to an unmemoized full scan.
type Handlers struct {
	Registry  *Registry
	Publisher *events.Publisher
	Cache     *cache.RegionCache
	Index     *index.Manager
}

// vcpl builds the ViewCreationProperties apply.Apply is called with,
// carrying whichever accelerants h was constructed with.
func (h *Handlers) vcpl() *apply.ViewCreationProperties {
	return &apply.ViewCreationProperties{Cache: h.Cache, Index: h.Index}
}

// decodeQuery reads and decodes an ApplyRequest body into a *query.Query.
// The caller owns the returned query and must Close it.
func decodeQuery(r *http.Request) (*query.Query, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var req ApplyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	wire, err := base64.StdEncoding.DecodeString(req.QueryB64)
	if err != nil {
		return nil, err
	}
	return query.Decode(wire)
}

// Health serves GET /api/v1/health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Apply serves POST /api/v1/containers/{container}/apply: decode the
// request's query, run it against the named container, and return a
// summary of the resulting view.
func (h *Handlers) Apply(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["container"]
	c, rcxt, err := h.Registry.Lookup(name)
	if err != nil {
		Error(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}

	q, err := decodeQuery(r)
	if err != nil {
		Error(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	defer q.Close()

	v, _, err := apply.Apply(r.Context(), c, q, h.vcpl(), rcxt)
	if err != nil {
		slog.Error("apply failed", "container", name, "error", err)
		Error(w, http.StatusInternalServerError, ErrCodeInternalError, "apply failed")
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
	JSON(w, http.StatusOK, resp)
}

// MaterializeResponse reports where a materialized view landed.
type MaterializeResponse struct {
	ContainerName string `json:"container_name"`
	GroupPath     string `json:"group_path"`
}

// Materialize serves POST /api/v1/containers/{container}/materialize: same
// evaluation as Apply, but the resulting view is written into a fresh
// anonymous group on the registry's host container instead of summarized
// inline.
func (h *Handlers) Materialize(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["container"]
	c, rcxt, err := h.Registry.Lookup(name)
	if err != nil {
		Error(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}

	q, err := decodeQuery(r)
	if err != nil {
		Error(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	defer q.Close()

	v, mask, err := apply.Apply(r.Context(), c, q, h.vcpl(), rcxt)
	if err != nil {
		slog.Error("apply failed", "container", name, "error", err)
		Error(w, http.StatusInternalServerError, ErrCodeInternalError, "apply failed")
		return
	}

	var pub materialize.Publisher
	if h.Publisher != nil {
		pub = h.Publisher
	}
	group, err := materialize.Materialize(r.Context(), h.Registry.Host(), v, mask, pub)
	if err != nil {
		slog.Error("materialize failed", "container", name, "error", err)
		Error(w, http.StatusInternalServerError, ErrCodeInternalError, "materialize failed")
		return
	}

	hostName, _ := h.Registry.Host().CanonicalFilename(r.Context())
	JSON(w, http.StatusOK, MaterializeResponse{ContainerName: hostName, GroupPath: group.Path()})
}
