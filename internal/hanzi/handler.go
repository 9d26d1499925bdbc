package hanzi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pictoria/service-api/internal/action"
	"github.com/ovaphlow/pictoria/service-api/internal/hanzi/entity"
)

// Handler exposes HTTP endpoints for the Hanzi dictionary.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List serves GET /api/hanzi. The body is always a pagination envelope.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		action.WriteJSON(w, action.Status(err), action.FailedPage[entity.Hanzi](err))
		return
	}
	page, err := h.svc.List(r.Context(), q)
	if err != nil {
		h.logger.Debugw("hanzi list degraded", "err", err)
	}
	action.WriteJSON(w, action.Status(err), page)
}

func parseListQuery(r *http.Request) (ListQuery, error) {
	var q ListQuery
	// malformed page/limit fall back to defaults
	q.Limit, _, _ = action.QueryInt(r, "limit")
	q.Page, _, _ = action.QueryInt(r, "page")
	lvl, ok, err := action.QueryInt(r, "hsk_level")
	if err != nil {
		return q, err
	}
	if ok {
		q.HSKLevel = &lvl
	}
	q.CharacterType = r.URL.Query().Get("character_type")
	q.SearchTerm = r.URL.Query().Get("search_term")
	return q, nil
}

// Get serves GET /api/hanzi/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := action.PathID(r, "id")
	if err != nil {
		action.WriteResult(w, http.StatusOK, nil, err)
		return
	}
	row, err := h.svc.Get(r.Context(), id)
	action.WriteResult(w, http.StatusOK, row, err)
}

// Create serves POST /api/hanzi with one payload or an array of payloads.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	inputs, many, err := action.DecodeOneOrMany[entity.HanziInput](r.Body)
	if err != nil {
		h.logger.Debugw("invalid hanzi payload", "err", err)
		action.WriteResult(w, http.StatusCreated, nil, err)
		return
	}
	rows, err := h.svc.Create(r.Context(), inputs)
	if err != nil {
		h.logger.Debugw("hanzi create rejected", "err", err)
		action.WriteResult(w, http.StatusCreated, nil, err)
		return
	}
	if many {
		action.WriteResult(w, http.StatusCreated, rows, nil)
		return
	}
	action.WriteResult(w, http.StatusCreated, rows[0], nil)
}

// Update serves PUT /api/hanzi/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := action.PathID(r, "id")
	if err != nil {
		action.WriteResult(w, http.StatusOK, nil, err)
		return
	}
	in, err := action.DecodeOne[entity.HanziInput](r.Body)
	if err != nil {
		action.WriteResult(w, http.StatusOK, nil, err)
		return
	}
	row, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		h.logger.Debugw("hanzi update rejected", "err", err, "id", id)
	}
	action.WriteResult(w, http.StatusOK, row, err)
}

// Delete serves DELETE /api/hanzi/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := action.PathID(r, "id")
	if err != nil {
		action.WriteResult(w, http.StatusOK, nil, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.logger.Debugw("hanzi delete rejected", "err", err, "id", id)
		action.WriteResult(w, http.StatusOK, nil, err)
		return
	}
	action.WriteResult(w, http.StatusOK, nil, nil)
}

// Register mounts the Hanzi routes on mux.
func (h *Handler) Register(mux *http.ServeMux, prefix string) {
	mux.HandleFunc("GET "+prefix+"/hanzi", h.List)
	mux.HandleFunc("POST "+prefix+"/hanzi", h.Create)
	mux.HandleFunc("GET "+prefix+"/hanzi/{id}", h.Get)
	mux.HandleFunc("PUT "+prefix+"/hanzi/{id}", h.Update)
	mux.HandleFunc("DELETE "+prefix+"/hanzi/{id}", h.Delete)
}
