package pg

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/itchan-dev/bbs/shared/config"
	"github.com/itchan-dev/bbs/shared/errors"
	"github.com/itchan-dev/bbs/shared/logger"
	sharedpg "github.com/itchan-dev/bbs/shared/storage/pg"

	_ "github.com/lib/pq"
)

//go:embed migrations/init.sql
var initSchema string

type Querier = sharedpg.Querier

// Storage implements the catalog, post and ledger storage interfaces on
// postgres.
type Storage struct {
	db *sql.DB
}

func New(ctx context.Context, cfg *config.Config) (*Storage, error) {
	logger.Log.Info("connecting to db", "host", cfg.Private.Pg.Host, "dbname", cfg.Private.Pg.Dbname)
	db, err := sharedpg.Connect(ctx, cfg, sharedpg.DefaultConnectionConfig())
	if err != nil {
		return nil, err
	}
	logger.Log.Info("successfully connected to db")
	return NewFromDB(db), nil
}

// NewFromDB wraps an already opened connection pool.
func NewFromDB(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// Migrate creates the schema. It is idempotent.
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, initSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Cleanup() error {
	return s.db.Close()
}

func (s *Storage) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return sharedpg.WithTx(ctx, s.db, fn)
}

// conflict maps unique violations to the engine's conflict errors; other
// errors pass through wrapped with op. other is the prefix of a category or
// the order of a board.
func conflict(err error, op string, resource, name, other string) error {
	constraint, ok := sharedpg.UniqueViolation(err)
	if !ok {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	switch constraint {
	case "boards_order_key":
		return errors.OrderConflict(resource, other)
	case "categories_prefix_key":
		return errors.New(errors.KindNameConflict, resource, other,
			fmt.Sprintf("Prefix '%s' is already used by another category", other))
	default:
		return errors.NameConflict(resource, name)
	}
}

// utc normalizes timestamps read from TIMESTAMP columns.
func utc(t time.Time) time.Time {
	return t.UTC()
}
