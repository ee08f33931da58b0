package overrides

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/graphpatch/pkg/errors"
	"github.com/matzehuels/graphpatch/pkg/patch"
)

// maxPayloadBytes bounds POST /overrides bodies.
const maxPayloadBytes = 32 << 20

// Handler serves override layers from a [Store].
type Handler struct {
	store  Store
	log    *log.Logger
	router chi.Router
}

// NewHandler returns a handler serving:
//
//	GET  /overrides/{layer}   layer is "nodes" or "edges"
//	POST /overrides           body is {"nodes": FeatureCollection, "edges": FeatureCollection}
//
// Use [Handler.Mount] to add the same routes to an existing router.
func NewHandler(store Store, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	h := &Handler{store: store, log: logger, router: chi.NewRouter()}
	h.Mount(h.router)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Mount registers the override routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/overrides/{layer}", h.handleGetLayer)
	r.Post("/overrides", h.handleSave)
}

func (h *Handler) handleGetLayer(w http.ResponseWriter, r *http.Request) {
	var (
		fc  *geojson.FeatureCollection
		err error
	)
	switch layer := Layer(chi.URLParam(r, "layer")); layer {
	case LayerNodes:
		fc, err = h.store.LoadNodes(r.Context())
	case LayerEdges:
		fc, err = h.store.LoadEdges(r.Context())
	default:
		writeError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "unknown layer "+string(layer))
		return
	}
	if errors.Is(err, errors.ErrCodeNotFound) {
		writeError(w, http.StatusNotFound, errors.ErrCodeNotFound, errors.UserMessage(err))
		return
	}
	if err != nil {
		h.log.Error("load override layer failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.ErrCodeOverrideLoadFailure, "failed to load overrides")
		return
	}
	WriteJSON(w, http.StatusOK, fc)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var p patch.Payload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes)).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "invalid payload: "+err.Error())
		return
	}
	if err := validatePayload(p); err != nil {
		writeError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, errors.UserMessage(err))
		return
	}
	if err := h.store.Save(r.Context(), p); err != nil {
		h.log.Error("save overrides failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.GetCode(err), errors.UserMessage(err))
		return
	}
	h.log.Info("saved overrides", "nodes", len(p.Nodes.Features), "edges", len(p.Edges.Features))
	WriteJSON(w, http.StatusOK, map[string]any{
		"status": "saved",
		"nodes":  len(p.Nodes.Features),
		"edges":  len(p.Edges.Features),
	})
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody is the JSON shape of error responses.
type ErrorBody struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code errors.Code, msg string) {
	WriteJSON(w, status, ErrorBody{Error: msg, Code: code})
}

// WriteError writes an [ErrorBody] for err, using its code when present.
func WriteError(w http.ResponseWriter, status int, err error) {
	writeError(w, status, errors.GetCode(err), errors.UserMessage(err))
}
