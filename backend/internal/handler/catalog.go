package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/itchan-dev/bbs/shared/api"
	"github.com/itchan-dev/bbs/shared/domain"
	"github.com/itchan-dev/bbs/shared/errors"
	"github.com/itchan-dev/bbs/shared/utils"
)

var errNothingToUpdate = &errors.ErrorWithStatusCode{Message: "Nothing to update", StatusCode: http.StatusBadRequest}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	categories, err := h.catalog.VisibleCategories(r.Context(), s)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	resp := api.CategoryListResponse{Categories: make([]api.CategoryResponse, len(categories))}
	for i, c := range categories {
		resp.Categories[i] = api.NewCategoryResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	var body api.CreateCategoryRequest
	if err := h.decode(w, r, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	category, err := h.catalog.CreateCategory(r.Context(), s, body.Name, body.Prefix)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.NewCategoryResponse(category))
}

// UpdateCategory applies rename, prefix and lock changes in that order and
// stops at the first failure.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	var body api.UpdateCategoryRequest
	if err := h.decode(w, r, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	if body.Name == nil && body.Prefix == nil && body.Locks == nil {
		utils.WriteErrorAndStatusCode(w, errNothingToUpdate)
		return
	}

	ctx := r.Context()
	token := chi.URLParam(r, "category")
	var category domain.Category
	var err error
	if body.Name != nil {
		if category, err = h.catalog.RenameCategory(ctx, s, token, *body.Name); err != nil {
			utils.WriteErrorAndStatusCode(w, err)
			return
		}
		token = category.Name
	}
	if body.Prefix != nil {
		if category, err = h.catalog.SetCategoryPrefix(ctx, s, token, *body.Prefix); err != nil {
			utils.WriteErrorAndStatusCode(w, err)
			return
		}
		token = category.Name
	}
	if body.Locks != nil {
		if category, err = h.catalog.SetCategoryLocks(ctx, s, token, *body.Locks); err != nil {
			utils.WriteErrorAndStatusCode(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, api.NewCategoryResponse(category))
}

// DeleteCategory needs the exact name and prefix in the query as confirmation.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	err := h.catalog.DeleteCategory(r.Context(), s, chi.URLParam(r, "category"), query.Get("name"), query.Get("prefix"))
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ListBoards returns the visible boards with counts, membership and flags.
func (h *Handler) ListBoards(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	summaries, err := h.board.Summaries(r.Context(), s)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	resp := api.BoardListResponse{Boards: make([]api.BoardSummaryResponse, len(summaries))}
	for i, summary := range summaries {
		resp.Boards[i] = api.NewBoardSummaryResponse(summary)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	var body api.CreateBoardRequest
	if err := h.decode(w, r, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	board, err := h.catalog.CreateBoard(r.Context(), s, chi.URLParam(r, "category"), body.Name, body.Order)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.NewBoardResponse(board))
}

func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	board, err := h.catalog.FindBoard(r.Context(), s, chi.URLParam(r, "board"))
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewBoardResponse(board))
}

// UpdateBoard applies rename, reorder, lock and mandatory changes in that
// order and stops at the first failure.
func (h *Handler) UpdateBoard(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	var body api.UpdateBoardRequest
	if err := h.decode(w, r, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	if body.Name == nil && body.Order == nil && body.Locks == nil && body.Mandatory == nil {
		utils.WriteErrorAndStatusCode(w, errNothingToUpdate)
		return
	}

	ctx := r.Context()
	token := chi.URLParam(r, "board")
	var board domain.Board
	var err error
	if body.Name != nil {
		if board, err = h.catalog.RenameBoard(ctx, s, token, *body.Name); err != nil {
			utils.WriteErrorAndStatusCode(w, err)
			return
		}
		token = board.Alias()
	}
	if body.Order != nil {
		if board, err = h.catalog.ReorderBoard(ctx, s, token, *body.Order); err != nil {
			utils.WriteErrorAndStatusCode(w, err)
			return
		}
		token = board.Alias()
	}
	if body.Locks != nil {
		if board, err = h.catalog.SetBoardLocks(ctx, s, token, *body.Locks); err != nil {
			utils.WriteErrorAndStatusCode(w, err)
			return
		}
	}
	if body.Mandatory != nil {
		if board, err = h.catalog.SetMandatory(ctx, s, token, *body.Mandatory); err != nil {
			utils.WriteErrorAndStatusCode(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, api.NewBoardResponse(board))
}

// DeleteBoard needs the exact board name in ?verify= as confirmation.
func (h *Handler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	err := h.catalog.DeleteBoard(r.Context(), s, chi.URLParam(r, "board"), r.URL.Query().Get("verify"))
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) JoinBoard(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	board, err := h.catalog.JoinBoard(r.Context(), s, chi.URLParam(r, "board"))
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewBoardResponse(board))
}

func (h *Handler) LeaveBoard(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	board, err := h.catalog.LeaveBoard(r.Context(), s, chi.URLParam(r, "board"))
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewBoardResponse(board))
}
