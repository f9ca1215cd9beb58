package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/itchan-dev/bbs/backend/internal/lock"
	"github.com/itchan-dev/bbs/backend/internal/storage/memory"
	"github.com/itchan-dev/bbs/backend/internal/utils"
	"github.com/itchan-dev/bbs/shared/domain"
	"github.com/stretchr/testify/require"
)

var (
	admin = domain.Subject{Id: 1, Name: "admin", Permissions: domain.Permissions{"Admin"}}
	alice = domain.Subject{Id: 2, Name: "alice"}
	bob   = domain.Subject{Id: 3, Name: "bob"}
	dev   = domain.Subject{Id: 4, Name: "dev", Permissions: domain.Permissions{"Developer"}}
)

var testLocks = DefaultLocks{
	Site:     "create:perm(Admin);delete:perm(Admin);admin:perm(Admin)",
	Category: "see:all();create:perm(Admin);delete:perm(Admin);admin:perm(Admin)",
	Board:    "read:all();post:all();admin:perm(Admin)",
}

// fakeClock advances one second per reading.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type engine struct {
	store   *memory.Store
	catalog CatalogService
	ledger  LedgerService
	board   *Board
	clock   *fakeClock
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	store := memory.New()
	evaluator := lock.New("Developer")
	validator := utils.New(120, 20000)
	catalog := NewCatalog(store, evaluator, validator, testLocks)
	ledger := NewLedger(store)
	board := NewBoard(store, catalog, ledger, evaluator, validator).(*Board)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	board.now = clock.Now
	return &engine{store: store, catalog: catalog, ledger: ledger, board: board, clock: clock}
}

// announcements creates the ANN category with the "Staff News" board (ANN1).
func (e *engine) announcements(t *testing.T) domain.Board {
	t.Helper()
	ctx := context.Background()
	_, err := e.catalog.CreateCategory(ctx, admin, "Announcements", "ANN")
	require.NoError(t, err)
	board, err := e.catalog.CreateBoard(ctx, admin, "Announcements", "Staff News", 1)
	require.NoError(t, err)
	return board
}

func (e *engine) post(t *testing.T, s domain.Subject, board, subject, body string) domain.Post {
	t.Helper()
	_, p, err := e.board.CreatePost(context.Background(), s, board, subject, body)
	require.NoError(t, err)
	return p
}

func seqs(posts []domain.Post) []int {
	out := make([]int, len(posts))
	for i, p := range posts {
		out[i] = p.Seq
	}
	return out
}
