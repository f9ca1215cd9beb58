package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/itchan-dev/bbs/backend/internal/service"
	"github.com/itchan-dev/bbs/shared/api"
	"github.com/itchan-dev/bbs/shared/config"
	"github.com/itchan-dev/bbs/shared/domain"
	"github.com/itchan-dev/bbs/shared/logger"
	"github.com/itchan-dev/bbs/shared/markup"
	mw "github.com/itchan-dev/bbs/shared/middleware"
	"github.com/itchan-dev/bbs/shared/utils"
)

// HealthChecker reports whether the storage can serve requests.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	catalog service.CatalogService
	board   service.BoardService
	markup  *markup.Renderer
	cfg     *config.Config
	health  HealthChecker
}

func New(catalog service.CatalogService, board service.BoardService, renderer *markup.Renderer, cfg *config.Config, health HealthChecker) *Handler {
	return &Handler{
		catalog: catalog,
		board:   board,
		markup:  renderer,
		cfg:     cfg,
		health:  health,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Log.Error("encoding response", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

// subject returns the authenticated subject or writes 401.
func subject(w http.ResponseWriter, r *http.Request) (domain.Subject, bool) {
	s := mw.GetSubjectFromContext(r)
	if s == nil {
		http.Error(w, "Not authorized", http.StatusUnauthorized)
		return domain.Subject{}, false
	}
	return *s, true
}

// decode reads a size-limited JSON body into v and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	if h.cfg != nil && h.cfg.Public.Limits.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Public.Limits.MaxBodyBytes)
	}
	return utils.DecodeValidate(r.Body, v)
}

// renderPost converts a post including its raw and rendered body.
func (h *Handler) renderPost(board domain.Board, p domain.Post) api.PostResponse {
	resp := api.NewPostResponse(board, p)
	resp.Body = p.Body
	if h.markup != nil {
		resp.BodyHTML = h.markup.Render(p.Body)
	}
	return resp
}
