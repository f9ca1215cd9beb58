package apiclient

import (
	"context"
	"fmt"

	"github.com/itchan-dev/bbs/shared/api"
)

// === Catalog Methods ===

func (c *APIClient) Categories(ctx context.Context) ([]api.CategoryResponse, error) {
	var resp api.CategoryListResponse
	if err := c.do(ctx, "GET", "/v1/categories", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

func (c *APIClient) CreateCategory(ctx context.Context, data api.CreateCategoryRequest) (api.CategoryResponse, error) {
	var resp api.CategoryResponse
	err := c.do(ctx, "POST", "/v1/categories", data, &resp)
	return resp, err
}

// Boards returns the board listing with unread counts.
func (c *APIClient) Boards(ctx context.Context) ([]api.BoardSummaryResponse, error) {
	var resp api.BoardListResponse
	if err := c.do(ctx, "GET", "/v1/boards", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Boards, nil
}

func (c *APIClient) CreateBoard(ctx context.Context, category string, data api.CreateBoardRequest) (api.BoardResponse, error) {
	var resp api.BoardResponse
	err := c.do(ctx, "POST", fmt.Sprintf("/v1/categories/%s/boards", category), data, &resp)
	return resp, err
}

func (c *APIClient) JoinBoard(ctx context.Context, board string) (api.BoardResponse, error) {
	var resp api.BoardResponse
	err := c.do(ctx, "POST", fmt.Sprintf("/v1/boards/%s/join", board), nil, &resp)
	return resp, err
}

func (c *APIClient) LeaveBoard(ctx context.Context, board string) (api.BoardResponse, error) {
	var resp api.BoardResponse
	err := c.do(ctx, "POST", fmt.Sprintf("/v1/boards/%s/leave", board), nil, &resp)
	return resp, err
}
