package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/itchan-dev/bbs/shared/api"
	"github.com/itchan-dev/bbs/shared/domain"
	"github.com/itchan-dev/bbs/shared/utils"
)

// postRef joins the {board} and {post} URL params into "ANN1/3".
func postRef(r *http.Request) string {
	return chi.URLParam(r, "board") + "/" + chi.URLParam(r, "post")
}

// ListPosts returns post headers with the unread flag. Nothing is marked read.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	board, headers, err := h.board.ListPosts(r.Context(), s, chi.URLParam(r, "board"))
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	resp := api.PostListResponse{Board: api.NewBoardResponse(board), Posts: make([]api.PostResponse, len(headers))}
	for i, header := range headers {
		unread := header.Unread
		resp.Posts[i] = api.NewPostResponse(board, header.Post)
		resp.Posts[i].Unread = &unread
	}
	writeJSON(w, http.StatusOK, resp)
}

// ReadPosts returns the posts picked by the {selector} and marks them read.
func (h *Handler) ReadPosts(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	board, posts, err := h.board.ReadPosts(r.Context(), s, chi.URLParam(r, "board"), chi.URLParam(r, "selector"))
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	h.writePosts(w, board, posts)
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	var body api.CreatePostRequest
	if err := h.decode(w, r, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	board, post, err := h.board.CreatePost(r.Context(), s, chi.URLParam(r, "board"), body.Subject, body.Body)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.renderPost(board, post))
}

// EditPost either replaces text in the body or renames the post.
func (h *Handler) EditPost(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	var body api.EditPostRequest
	if err := h.decode(w, r, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	ctx := r.Context()
	var post domain.Post
	var err error
	if body.Subject != nil {
		post, err = h.board.RenamePost(ctx, s, postRef(r), *body.Subject)
	} else {
		post, err = h.board.EditPost(ctx, s, postRef(r), *body.Find, body.Replace)
	}
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	board, err := h.catalog.GetBoard(ctx, s, post.BoardId)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.renderPost(board, post))
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	if err := h.board.DeletePost(r.Context(), s, postRef(r)); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// SquishPosts renumbers the board's posts to 1..n.
func (h *Handler) SquishPosts(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	board, renumbered, err := h.board.SquishPosts(r.Context(), s, chi.URLParam(r, "board"))
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SquishResponse{Board: api.NewBoardResponse(board), Renumbered: renumbered})
}

func (h *Handler) CatchUp(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	var body api.CatchUpRequest
	if err := h.decode(w, r, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	result, err := h.board.CatchUp(r.Context(), s, body.Boards)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewCatchUpResponse(result))
}

// Scan lists the unread posts of every visible board.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	scan, err := h.board.Scan(r.Context(), s)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewScanResponse(scan))
}

// ReadNext returns the first unread post and marks it read.
func (h *Handler) ReadNext(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	board, post, err := h.board.ReadNext(r.Context(), s)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NextPostResponse{Board: api.NewBoardResponse(board), Post: h.renderPost(board, post)})
}

func (h *Handler) writePosts(w http.ResponseWriter, board domain.Board, posts []domain.Post) {
	resp := api.PostListResponse{Board: api.NewBoardResponse(board), Posts: make([]api.PostResponse, len(posts))}
	for i, p := range posts {
		resp.Posts[i] = h.renderPost(board, p)
	}
	writeJSON(w, http.StatusOK, resp)
}
