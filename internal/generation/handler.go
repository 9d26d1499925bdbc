package generation

import (
	"errors"
	"net/http"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/ovaphlow/pictoria/service-api/internal/action"
	"github.com/ovaphlow/pictoria/service-api/internal/storage"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Generate serves POST /api/images/generate.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	req, err := action.DecodeOne[Request](r.Body)
	if err != nil {
		action.WriteResult(w, http.StatusOK, nil, err)
		return
	}
	res, err := h.svc.Generate(r.Context(), req)
	switch {
	case err == nil:
		action.WriteResult(w, http.StatusOK, res, nil)
	case upstream(err):
		status := http.StatusBadGateway
		if errors.Is(err, ErrProviderNotConfigured) || errors.Is(err, storage.ErrNotConfigured) {
			status = http.StatusServiceUnavailable
		}
		action.WriteJSON(w, status, action.Failure(err))
	default:
		action.WriteResult(w, http.StatusOK, nil, err)
	}
}

// List serves GET /api/images.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _, _ := action.QueryInt(r, "limit")
	page, _, _ := action.QueryInt(r, "page")
	res, err := h.svc.List(r.Context(), page, limit)
	if err != nil {
		h.logger.Debugw("image list degraded", "err", err)
	}
	action.WriteJSON(w, action.Status(err), res)
}

// Delete serves DELETE /api/images/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := ksuid.Parse(id); err != nil {
		action.WriteResult(w, http.StatusOK, nil, action.Validation("id", "must be a KSUID"))
		return
	}
	err := h.svc.Delete(r.Context(), id)
	action.WriteResult(w, http.StatusOK, nil, err)
}

func (h *Handler) Register(mux *http.ServeMux, prefix string) {
	mux.HandleFunc("POST "+prefix+"/images/generate", h.Generate)
	mux.HandleFunc("GET "+prefix+"/images", h.List)
	mux.HandleFunc("DELETE "+prefix+"/images/{id}", h.Delete)
}
