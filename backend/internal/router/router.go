package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/itchan-dev/bbs/backend/internal/setup"
	mw "github.com/itchan-dev/bbs/shared/middleware"
	"github.com/itchan-dev/bbs/shared/middleware/metrics"
	rl "github.com/itchan-dev/bbs/shared/middleware/ratelimiter"
)

// New creates the chi router with all routes. Limiters added with Use count
// requests for every endpoint of that group combined.
func New(deps *setup.Dependencies) http.Handler {
	cfg := deps.Config.Public
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(chimw.Compress(5))
	r.Use(mw.SecurityHeaders(cfg.Http.Https))
	if len(cfg.CorsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	h := deps.Handler
	r.Group(func(public chi.Router) {
		public.Use(mw.RateLimit(rl.New(20, 40, time.Hour), mw.IPIdentity)) // 20 RPS per client address
		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)
		public.Handle("/metrics", metrics.Handler())
	})

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(deps.AuthMiddleware.NeedAuth())
		v1.Use(mw.RateLimit(rl.New(100, 100, time.Hour), mw.SubjectIdentity)) // 100 RPS per subject

		v1.Get("/categories", h.ListCategories)
		v1.Post("/categories", h.CreateCategory)
		v1.Patch("/categories/{category}", h.UpdateCategory)
		v1.Delete("/categories/{category}", h.DeleteCategory)
		v1.Post("/categories/{category}/boards", h.CreateBoard)

		v1.Get("/boards", h.ListBoards)
		v1.Get("/boards/{board}", h.GetBoard)
		v1.Patch("/boards/{board}", h.UpdateBoard)
		v1.Delete("/boards/{board}", h.DeleteBoard)
		v1.Post("/boards/{board}/join", h.JoinBoard)
		v1.Post("/boards/{board}/leave", h.LeaveBoard)
		v1.Post("/boards/{board}/squish", h.SquishPosts)

		v1.Get("/boards/{board}/posts", h.ListPosts)
		// posting shares one bucket per subject across boards
		v1.With(mw.RateLimit(deps.PostLimiter, mw.SubjectIdentity)).Post("/boards/{board}/posts", h.CreatePost)
		v1.Get("/boards/{board}/read/{selector}", h.ReadPosts)
		v1.Patch("/boards/{board}/posts/{post}", h.EditPost)
		v1.Delete("/boards/{board}/posts/{post}", h.DeletePost)

		v1.Post("/catchup", h.CatchUp)
		v1.Get("/scan", h.Scan)
		v1.Get("/next", h.ReadNext)
	})

	return r
}
