package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/itchan-dev/bbs/backend/internal/setup"
	"github.com/itchan-dev/bbs/backend/internal/storage/memory"
	"github.com/itchan-dev/bbs/shared/api"
	"github.com/itchan-dev/bbs/shared/config"
	"github.com/itchan-dev/bbs/shared/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Public.Storage = config.StorageMemory
	cfg.Public.JwtTTL = time.Hour
	cfg.Public.Locks = config.Locks{
		Site:            "create:perm(Admin);delete:perm(Admin);admin:perm(Admin)",
		Category:        "see:all();create:perm(Admin);delete:perm(Admin);admin:perm(Admin)",
		Board:           "read:all();post:all();admin:perm(Admin)",
		SuperPermission: "Developer",
	}
	cfg.Public.Limits = config.Limits{
		SubjectMaxLen:  120,
		BodyMaxLen:     2000,
		MaxBodyBytes:   1 << 16,
		PostsPerSecond: 0.001,
		PostBurst:      3,
	}
	cfg.Private.JwtKey = "test_secret"
	return cfg
}

type client struct {
	t      *testing.T
	router http.Handler
	token  string
}

func (c *client) do(method, url string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rr := httptest.NewRecorder()
	c.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func newTestServer(t *testing.T) (http.Handler, *setup.Dependencies) {
	deps := setup.Build(testConfig(), memory.New())
	t.Cleanup(deps.Cleanup)
	return New(deps), deps
}

func login(t *testing.T, router http.Handler, deps *setup.Dependencies, s domain.Subject) *client {
	token, err := deps.Jwt.NewToken(s)
	require.NoError(t, err)
	return &client{t: t, router: router, token: token}
}

func TestPublicEndpoints(t *testing.T) {
	router, _ := newTestServer(t)
	anon := &client{t: t, router: router}

	rr := anon.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	assert.Equal(t, http.StatusOK, anon.do(http.MethodGet, "/ready", nil).Code)

	rr = anon.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "bbs_http_requests_total")

	assert.Equal(t, http.StatusUnauthorized, anon.do(http.MethodGet, "/v1/boards", nil).Code)
}

func TestReadTrackingFlow(t *testing.T) {
	router, deps := newTestServer(t)
	admin := login(t, router, deps, domain.Subject{Id: 1, Name: "admin", Permissions: domain.Permissions{"Admin"}})
	alice := login(t, router, deps, domain.Subject{Id: 2, Name: "alice"})

	rr := admin.do(http.MethodPost, "/v1/categories", api.CreateCategoryRequest{Name: "Announcements", Prefix: "ANN"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = alice.do(http.MethodPost, "/v1/categories", api.CreateCategoryRequest{Name: "Mine", Prefix: "MN"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = admin.do(http.MethodPost, "/v1/categories/ANN/boards", api.CreateBoardRequest{Name: "General"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "ANN1", decode[api.BoardResponse](t, rr).Alias)

	rr = admin.do(http.MethodPost, "/v1/boards/ANN1/posts", api.CreatePostRequest{Subject: "Welcome", Body: "Hello *all*"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[api.PostResponse](t, rr)
	assert.Equal(t, "ANN1/1", created.Ref)
	assert.Contains(t, created.BodyHTML, "<em>all</em>")

	rr = alice.do(http.MethodGet, "/v1/boards", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	boards := decode[api.BoardListResponse](t, rr).Boards
	require.Len(t, boards, 1)
	assert.Equal(t, 1, boards[0].Unread)

	rr = alice.do(http.MethodGet, "/v1/boards/ANN1/read/u", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Len(t, decode[api.PostListResponse](t, rr).Posts, 1)

	rr = alice.do(http.MethodGet, "/v1/boards/ANN1/read/u", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = admin.do(http.MethodPost, "/v1/boards/ANN1/posts", api.CreatePostRequest{Subject: "Second", Body: "More"})
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = admin.do(http.MethodPost, "/v1/boards/ANN1/posts", api.CreatePostRequest{Subject: "Third", Body: "Even more"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = alice.do(http.MethodGet, "/v1/scan", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	scan := decode[api.ScanResponse](t, rr)
	assert.Equal(t, 2, scan.Total)
	require.Len(t, scan.Boards, 1)
	assert.Equal(t, []int{2, 3}, scan.Boards[0].Posts)

	rr = alice.do(http.MethodGet, "/v1/next", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "ANN1/2", decode[api.NextPostResponse](t, rr).Post.Ref)

	rr = alice.do(http.MethodPost, "/v1/catchup", api.CatchUpRequest{Boards: []string{"all"}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, map[string]int{"ANN1": 1}, decode[api.CatchUpResponse](t, rr).Marked)

	assert.Equal(t, http.StatusNotFound, alice.do(http.MethodGet, "/v1/next", nil).Code)
	rr = alice.do(http.MethodGet, "/v1/scan", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, decode[api.ScanResponse](t, rr).Total)

	rr = alice.do(http.MethodGet, "/v1/boards/ANN1/posts", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	for _, p := range decode[api.PostListResponse](t, rr).Posts {
		require.NotNil(t, p.Unread)
		assert.False(t, *p.Unread, p.Ref)
	}
}

func TestPostRateLimit(t *testing.T) {
	router, deps := newTestServer(t)
	admin := login(t, router, deps, domain.Subject{Id: 1, Name: "admin", Permissions: domain.Permissions{"Admin"}})
	alice := login(t, router, deps, domain.Subject{Id: 2, Name: "alice"})
	root := login(t, router, deps, domain.Subject{Id: 3, Name: "root", SuperAdmin: true})

	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/v1/categories", api.CreateCategoryRequest{Name: "General", Prefix: "GEN"}).Code)
	require.Equal(t, http.StatusCreated, admin.do(http.MethodPost, "/v1/categories/GEN/boards", api.CreateBoardRequest{Name: "Chat"}).Code)

	post := api.CreatePostRequest{Subject: "hi", Body: "hello"}
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusCreated, alice.do(http.MethodPost, "/v1/boards/GEN1/posts", post).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, alice.do(http.MethodPost, "/v1/boards/GEN1/posts", post).Code)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusCreated, root.do(http.MethodPost, "/v1/boards/GEN1/posts", post).Code)
	}
}

func TestHealthRateLimit(t *testing.T) {
	router, _ := newTestServer(t)
	anon := &client{t: t, router: router}

	for i := 0; i < 40; i++ {
		require.Equal(t, http.StatusOK, anon.do(http.MethodGet, "/health", nil).Code, "request %d", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, anon.do(http.MethodGet, "/ready", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, "other addresses keep their own bucket")
}
