package api

import (
	"time"

	"github.com/itchan-dev/bbs/shared/domain"
)

// Request DTOs

type CreatePostRequest struct {
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body" validate:"required"`
}

// EditPostRequest either replaces every occurrence of Find in the body or
// sets a new Subject. Exactly one of the two must be given.
type EditPostRequest struct {
	Find    *string `json:"find,omitempty" validate:"required_without=Subject,excluded_with=Subject"`
	Replace string  `json:"replace"`
	Subject *string `json:"subject,omitempty" validate:"required_without=Find"`
}

type CatchUpRequest struct {
	// Board aliases or names, or the single word "all".
	Boards []string `json:"boards" validate:"required,min=1,dive,required"`
}

// Response DTOs

type PostResponse struct {
	Ref        string    `json:"ref"`
	Seq        int       `json:"seq"`
	Subject    string    `json:"subject"`
	Author     string    `json:"author"`
	Body       string    `json:"body,omitempty"`
	BodyHTML   string    `json:"body_html,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	Unread     *bool     `json:"unread,omitempty"`
}

type PostListResponse struct {
	Board BoardResponse  `json:"board"`
	Posts []PostResponse `json:"posts"`
}

type SquishResponse struct {
	Board      BoardResponse `json:"board"`
	Renumbered int           `json:"renumbered"`
}

type CatchUpResponse struct {
	Marked    map[string]int `json:"marked"`
	Mandatory []string       `json:"mandatory"`
}

type ScanBoardResponse struct {
	Board  BoardResponse `json:"board"`
	Unread int           `json:"unread"`
	Posts  []int         `json:"posts"`
}

type ScanResponse struct {
	Boards []ScanBoardResponse `json:"boards"`
	Total  int                 `json:"total"`
}

type NextPostResponse struct {
	Board BoardResponse `json:"board"`
	Post  PostResponse  `json:"post"`
}

// NewPostResponse fills everything but the body; callers that return the body
// also set BodyHTML.
func NewPostResponse(board domain.Board, p domain.Post) PostResponse {
	return PostResponse{
		Ref:        p.Alias(board.Alias()),
		Seq:        p.Seq,
		Subject:    p.Subject,
		Author:     p.AuthorName,
		CreatedAt:  p.CreatedAt,
		ModifiedAt: p.ModifiedAt,
	}
}

func NewCatchUpResponse(r domain.CatchUpResult) CatchUpResponse {
	resp := CatchUpResponse{Marked: make(map[string]int, len(r.Marked)), Mandatory: []string{}}
	for alias, n := range r.Marked {
		resp.Marked[alias] = n
	}
	resp.Mandatory = append(resp.Mandatory, r.Mandatory...)
	return resp
}

func NewScanResponse(scan domain.Scan) ScanResponse {
	resp := ScanResponse{Boards: make([]ScanBoardResponse, len(scan.Boards)), Total: scan.Total}
	for i, b := range scan.Boards {
		seqs := make([]int, len(b.Posts))
		for j, p := range b.Posts {
			seqs[j] = p.Seq
		}
		resp.Boards[i] = ScanBoardResponse{Board: NewBoardResponse(b.Board), Unread: len(b.Posts), Posts: seqs}
	}
	return resp
}
