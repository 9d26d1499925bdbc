package compositor

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pictoria/service-api/internal/action"
)

// RenderRequest is the body of POST /api/compositor/render.
type RenderRequest struct {
	Character      string   `json:"character"`
	Pronunciations []string `json:"pronunciations"`
}

// RenderResponse is the JSON form of a render.
type RenderResponse struct {
	DataURI string `json:"data_uri"`
	Size    int    `json:"size"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

type Handler struct {
	c      *Compositor
	logger *zap.SugaredLogger
}

func NewHandler(c *Compositor, logger *zap.SugaredLogger) *Handler {
	return &Handler{c: c, logger: logger}
}

// Render returns the card as JSON, or as raw PNG when the client accepts image/png.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	req, err := action.DecodeOne[RenderRequest](r.Body)
	if err != nil {
		action.WriteResult(w, http.StatusOK, nil, err)
		return
	}
	img, err := h.c.Render(req.Character, req.Pronunciations)
	if err != nil {
		h.logger.Debugw("render rejected", "err", err)
		action.WriteResult(w, http.StatusOK, nil, err)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "image/png") {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(img.Size))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(img.PNG)
		return
	}
	action.WriteResult(w, http.StatusOK, RenderResponse{
		DataURI: img.DataURI,
		Size:    img.Size,
		Width:   img.Width,
		Height:  img.Height,
	}, nil)
}

func (h *Handler) Register(mux *http.ServeMux, prefix string) {
	mux.HandleFunc("POST "+prefix+"/compositor/render", h.Render)
}
