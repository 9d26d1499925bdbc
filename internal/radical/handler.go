package radical

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pictoria/service-api/internal/action"
	"github.com/ovaphlow/pictoria/service-api/internal/radical/entity"
)

// Handler exposes HTTP endpoints for radicals.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List serves GET /api/radicals.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var q ListQuery
	q.Limit, _, _ = action.QueryInt(r, "limit")
	q.Page, _, _ = action.QueryInt(r, "page")
	lvl, ok, err := action.QueryInt(r, "hsk_level")
	if err != nil {
		action.WriteJSON(w, action.Status(err), action.FailedPage[entity.Radical](err))
		return
	}
	if ok {
		q.HSKLevel = &lvl
	}
	q.SearchTerm = r.URL.Query().Get("search_term")

	page, err := h.svc.List(r.Context(), q)
	if err != nil {
		h.logger.Debugw("radical list degraded", "err", err)
	}
	action.WriteJSON(w, action.Status(err), page)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := action.PathID(r, "id")
	if err != nil {
		action.WriteResult(w, http.StatusOK, nil, err)
		return
	}
	row, err := h.svc.Get(r.Context(), id)
	action.WriteResult(w, http.StatusOK, row, err)
}

// GetByKangxi serves GET /api/radicals/kangxi/{number}.
func (h *Handler) GetByKangxi(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		action.WriteResult(w, http.StatusOK, nil, action.Validation("kangxi_number", "must be an integer"))
		return
	}
	row, err := h.svc.GetByKangxi(r.Context(), n)
	action.WriteResult(w, http.StatusOK, row, err)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	inputs, many, err := action.DecodeOneOrMany[entity.RadicalInput](r.Body)
	if err != nil {
		action.WriteResult(w, http.StatusCreated, nil, err)
		return
	}
	rows, err := h.svc.Create(r.Context(), inputs)
	if err != nil {
		h.logger.Debugw("radical create rejected", "err", err)
		action.WriteResult(w, http.StatusCreated, nil, err)
		return
	}
	if many {
		action.WriteResult(w, http.StatusCreated, rows, nil)
		return
	}
	action.WriteResult(w, http.StatusCreated, rows[0], nil)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := action.PathID(r, "id")
	if err != nil {
		action.WriteResult(w, http.StatusOK, nil, err)
		return
	}
	in, err := action.DecodeOne[entity.RadicalInput](r.Body)
	if err != nil {
		action.WriteResult(w, http.StatusOK, nil, err)
		return
	}
	row, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		h.logger.Debugw("radical update rejected", "err", err, "id", id)
	}
	action.WriteResult(w, http.StatusOK, row, err)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := action.PathID(r, "id")
	if err != nil {
		action.WriteResult(w, http.StatusOK, nil, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.logger.Debugw("radical delete rejected", "err", err, "id", id)
		action.WriteResult(w, http.StatusOK, nil, err)
		return
	}
	action.WriteResult(w, http.StatusOK, nil, nil)
}

// Register mounts the radical routes on mux.
func (h *Handler) Register(mux *http.ServeMux, prefix string) {
	mux.HandleFunc("GET "+prefix+"/radicals", h.List)
	mux.HandleFunc("POST "+prefix+"/radicals", h.Create)
	mux.HandleFunc("GET "+prefix+"/radicals/{id}", h.Get)
	mux.HandleFunc("GET "+prefix+"/radicals/kangxi/{number}", h.GetByKangxi)
	mux.HandleFunc("PUT "+prefix+"/radicals/{id}", h.Update)
	mux.HandleFunc("DELETE "+prefix+"/radicals/{id}", h.Delete)
}
