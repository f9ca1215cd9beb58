package api

import (
	"time"

	"github.com/itchan-dev/bbs/shared/domain"
)

// Request DTOs

type CreateCategoryRequest struct {
	Name   string `json:"name" validate:"required"`
	Prefix string `json:"prefix"`
}

// UpdateCategoryRequest changes only the fields that are present.
type UpdateCategoryRequest struct {
	Name   *string `json:"name,omitempty"`
	Prefix *string `json:"prefix,omitempty"`
	Locks  *string `json:"locks,omitempty"`
}

type CreateBoardRequest struct {
	Name string `json:"name" validate:"required"`
	// 0 takes the next free order in the category
	Order int `json:"order" validate:"gte=0"`
}

// UpdateBoardRequest changes only the fields that are present.
type UpdateBoardRequest struct {
	Name      *string `json:"name,omitempty"`
	Order     *int    `json:"order,omitempty" validate:"omitempty,gt=0"`
	Locks     *string `json:"locks,omitempty"`
	Mandatory *bool   `json:"mandatory,omitempty"`
}

// Response DTOs

type CategoryResponse struct {
	Id        domain.CategoryId `json:"id"`
	Name      string            `json:"name"`
	Prefix    string            `json:"prefix"`
	Locks     string            `json:"locks"`
	CreatedAt time.Time         `json:"created_at"`
}

type CategoryListResponse struct {
	Categories []CategoryResponse `json:"categories"`
}

type BoardResponse struct {
	Id        domain.BoardId `json:"id"`
	Alias     string         `json:"alias"`
	Name      string         `json:"name"`
	Category  string         `json:"category"`
	Order     int            `json:"order"`
	Locks     string         `json:"locks"`
	Mandatory bool           `json:"mandatory"`
	NextPost  int            `json:"next_post"`
	CreatedAt time.Time      `json:"created_at"`
}

// BoardSummaryResponse is one row of the board listing.
type BoardSummaryResponse struct {
	BoardResponse
	Posts      int    `json:"posts"`
	Unread     int    `json:"unread"`
	Membership string `json:"membership"`
	Flags      string `json:"flags"`
}

type BoardListResponse struct {
	Boards []BoardSummaryResponse `json:"boards"`
}

func NewCategoryResponse(c domain.Category) CategoryResponse {
	return CategoryResponse{
		Id:        c.Id,
		Name:      c.Name,
		Prefix:    c.Prefix,
		Locks:     c.Locks,
		CreatedAt: c.CreatedAt,
	}
}

func NewBoardResponse(b domain.Board) BoardResponse {
	return BoardResponse{
		Id:        b.Id,
		Alias:     b.Alias(),
		Name:      b.Name,
		Category:  b.CategoryName,
		Order:     b.Order,
		Locks:     b.Locks,
		Mandatory: b.Mandatory,
		NextPost:  b.NextPostSeq,
		CreatedAt: b.CreatedAt,
	}
}

func NewBoardSummaryResponse(s domain.BoardSummary) BoardSummaryResponse {
	return BoardSummaryResponse{
		BoardResponse: NewBoardResponse(s.Board),
		Posts:         s.PostCount,
		Unread:        s.Unread,
		Membership:    s.Membership,
		Flags:         s.Flags,
	}
}
