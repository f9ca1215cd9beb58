package apiclient

import (
	"context"
	"fmt"

	"github.com/itchan-dev/bbs/shared/api"
)

// === Post Methods ===

func (c *APIClient) CreatePost(ctx context.Context, board string, data api.CreatePostRequest) (api.PostResponse, error) {
	var resp api.PostResponse
	err := c.do(ctx, "POST", fmt.Sprintf("/v1/boards/%s/posts", board), data, &resp)
	return resp, err
}

// ListPosts returns headers with unread flags and marks nothing read.
func (c *APIClient) ListPosts(ctx context.Context, board string) (api.PostListResponse, error) {
	var resp api.PostListResponse
	err := c.do(ctx, "GET", fmt.Sprintf("/v1/boards/%s/posts", board), nil, &resp)
	return resp, err
}

// Read fetches the posts picked by selector ("3", "1-6", "u", ...) and marks
// them read.
func (c *APIClient) Read(ctx context.Context, board, selector string) (api.PostListResponse, error) {
	var resp api.PostListResponse
	path := fmt.Sprintf("/v1/boards/%s/read/%s", board, selector)
	err := c.do(ctx, "GET", path, nil, &resp)
	return resp, err
}

func (c *APIClient) EditPost(ctx context.Context, board string, seq int, data api.EditPostRequest) (api.PostResponse, error) {
	var resp api.PostResponse
	err := c.do(ctx, "PATCH", fmt.Sprintf("/v1/boards/%s/posts/%d", board, seq), data, &resp)
	return resp, err
}

func (c *APIClient) CatchUp(ctx context.Context, boards ...string) (api.CatchUpResponse, error) {
	var resp api.CatchUpResponse
	err := c.do(ctx, "POST", "/v1/catchup", api.CatchUpRequest{Boards: boards}, &resp)
	return resp, err
}

// Scan lists unread post numbers per board.
func (c *APIClient) Scan(ctx context.Context) (api.ScanResponse, error) {
	var resp api.ScanResponse
	err := c.do(ctx, "GET", "/v1/scan", nil, &resp)
	return resp, err
}

// Next fetches the first unread post across boards and marks it read.
func (c *APIClient) Next(ctx context.Context) (api.NextPostResponse, error) {
	var resp api.NextPostResponse
	err := c.do(ctx, "GET", "/v1/next", nil, &resp)
	return resp, err
}
