package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/itchan-dev/bbs/backend/internal/handler"
	"github.com/itchan-dev/bbs/backend/internal/lock"
	"github.com/itchan-dev/bbs/backend/internal/service"
	"github.com/itchan-dev/bbs/backend/internal/storage/memory"
	"github.com/itchan-dev/bbs/backend/internal/storage/pg"
	"github.com/itchan-dev/bbs/backend/internal/utils"
	"github.com/itchan-dev/bbs/shared/config"
	jwt_internal "github.com/itchan-dev/bbs/shared/jwt"
	"github.com/itchan-dev/bbs/shared/logger"
	"github.com/itchan-dev/bbs/shared/markup"
	mw "github.com/itchan-dev/bbs/shared/middleware"
	rl "github.com/itchan-dev/bbs/shared/middleware/ratelimiter"
)

// Storage is everything the services need from a backend.
type Storage interface {
	service.CatalogStorage
	service.PostStorage
	service.LedgerStorage
	Ping(ctx context.Context) error
}

// Dependencies struct to hold all initialized dependencies.
type Dependencies struct {
	Config         *config.Config
	Storage        Storage
	Catalog        service.CatalogService
	Board          service.BoardService
	Handler        *handler.Handler
	AuthMiddleware *mw.Auth
	Jwt            jwt_internal.JwtService
	PostLimiter    *rl.Limiter
	cleanup        []func() error
}

// SetupDependencies initializes all dependencies required for the application.
func SetupDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	storage, cleanup, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	deps := Build(cfg, storage)
	deps.cleanup = append(deps.cleanup, cleanup...)
	return deps, nil
}

// Build wires the services, handler and middleware around storage.
func Build(cfg *config.Config, storage Storage) *Dependencies {
	evaluator := lock.New(cfg.Public.Locks.SuperPermission)
	validator := utils.New(cfg.Public.Limits.SubjectMaxLen, cfg.Public.Limits.BodyMaxLen)
	locks := service.DefaultLocks{
		Site:     cfg.Public.Locks.Site,
		Category: cfg.Public.Locks.Category,
		Board:    cfg.Public.Locks.Board,
	}

	catalog := service.NewCatalog(storage, evaluator, validator, locks)
	ledger := service.NewLedger(storage)
	board := service.NewBoard(storage, catalog, ledger, evaluator, validator)

	jwt := jwt_internal.New(cfg.JwtKey(), cfg.JwtTTL())
	postLimiter := rl.New(cfg.Public.Limits.PostsPerSecond, cfg.Public.Limits.PostBurst, time.Hour)

	return &Dependencies{
		Config:         cfg,
		Storage:        storage,
		Catalog:        catalog,
		Board:          board,
		Handler:        handler.New(catalog, board, markup.New(), cfg, storage),
		AuthMiddleware: mw.NewAuth(jwt),
		Jwt:            jwt,
		PostLimiter:    postLimiter,
		cleanup:        []func() error{func() error { postLimiter.Stop(); return nil }},
	}
}

// Cleanup releases the storage and stops background timers.
func (d *Dependencies) Cleanup() {
	for _, fn := range d.cleanup {
		if err := fn(); err != nil {
			logger.Log.Error("cleanup failed", "error", err)
		}
	}
}

func openStorage(ctx context.Context, cfg *config.Config) (Storage, []func() error, error) {
	switch cfg.Public.Storage {
	case config.StorageMemory:
		logger.Log.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), nil, nil
	case config.StoragePg:
		storage, err := pg.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := storage.Migrate(ctx); err != nil {
			storage.Cleanup()
			return nil, nil, err
		}
		return storage, []func() error{storage.Cleanup}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage %q", cfg.Public.Storage)
	}
}
