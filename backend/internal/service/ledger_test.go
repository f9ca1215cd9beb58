package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/itchan-dev/bbs/shared/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockLedgerStorage mocks the LedgerStorage interface.
type MockLedgerStorage struct {
	markReadFunc    func(subject domain.SubjectId, posts []domain.PostId, at time.Time) error
	getReadMarkFunc func(subject domain.SubjectId, post domain.PostId) (*domain.ReadMark, error)
	markReadCalls   int
}

func (m *MockLedgerStorage) MarkRead(ctx context.Context, subject domain.SubjectId, posts []domain.PostId, at time.Time) error {
	m.markReadCalls++
	if m.markReadFunc != nil {
		return m.markReadFunc(subject, posts, at)
	}
	return nil
}

func (m *MockLedgerStorage) GetReadMark(ctx context.Context, subject domain.SubjectId, post domain.PostId) (*domain.ReadMark, error) {
	if m.getReadMarkFunc != nil {
		return m.getReadMarkFunc(subject, post)
	}
	return nil, nil
}

func (m *MockLedgerStorage) UnreadPosts(ctx context.Context, subject domain.SubjectId, board domain.BoardId) ([]domain.Post, error) {
	return nil, nil
}

func (m *MockLedgerStorage) BoardStats(ctx context.Context, subject domain.SubjectId) (map[domain.BoardId]domain.BoardStats, error) {
	return nil, nil
}

func TestLedgerMarkAllRead(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Empty List Skips Storage", func(t *testing.T) {
		storage := &MockLedgerStorage{}
		l := NewLedger(storage)
		require.NoError(t, l.MarkAllRead(context.Background(), bob, nil, at))
		assert.Zero(t, storage.markReadCalls)
	})

	t.Run("Passes Ids", func(t *testing.T) {
		var got []domain.PostId
		storage := &MockLedgerStorage{
			markReadFunc: func(subject domain.SubjectId, posts []domain.PostId, when time.Time) error {
				assert.Equal(t, bob.Id, subject)
				assert.Equal(t, at, when)
				got = posts
				return nil
			},
		}
		l := NewLedger(storage)
		require.NoError(t, l.MarkAllRead(context.Background(), bob, []domain.Post{{Id: 4}, {Id: 9}}, at))
		assert.Equal(t, []domain.PostId{4, 9}, got)
	})

	t.Run("Storage Error", func(t *testing.T) {
		storage := &MockLedgerStorage{
			markReadFunc: func(domain.SubjectId, []domain.PostId, time.Time) error {
				return stderrors.New("storage error")
			},
		}
		l := NewLedger(storage)
		assert.EqualError(t, l.MarkAllRead(context.Background(), bob, []domain.Post{{Id: 1}}, at), "storage error")
	})
}

func TestLedgerIsUnread(t *testing.T) {
	modified := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	post := domain.Post{Id: 1, ModifiedAt: modified}

	testCases := []struct {
		name string
		mark *domain.ReadMark
		want bool
	}{
		{name: "No Mark", mark: nil, want: true},
		{name: "Older Mark", mark: &domain.ReadMark{ReadAt: modified.Add(-time.Microsecond)}, want: true},
		{name: "Equal Mark", mark: &domain.ReadMark{ReadAt: modified}, want: false},
		{name: "Newer Mark", mark: &domain.ReadMark{ReadAt: modified.Add(time.Hour)}, want: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLedger(&MockLedgerStorage{
				getReadMarkFunc: func(domain.SubjectId, domain.PostId) (*domain.ReadMark, error) {
					return tc.mark, nil
				},
			})
			got, err := l.IsUnread(context.Background(), bob, post)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLedgerMarkReadIdempotent(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	e.announcements(t)
	post := e.post(t, admin, "ANN1", "Welcome", "Hello")
	later := post.ModifiedAt.Add(time.Hour)

	require.NoError(t, e.ledger.MarkRead(ctx, bob, post, later))
	require.NoError(t, e.ledger.MarkRead(ctx, bob, post, later))
	require.NoError(t, e.ledger.MarkRead(ctx, bob, post, post.ModifiedAt.Add(-time.Hour)))

	mark, err := e.store.GetReadMark(ctx, bob.Id, post.Id)
	require.NoError(t, err)
	require.NotNil(t, mark)
	assert.Equal(t, later, mark.ReadAt, "marks never move backwards")

	unread, err := e.ledger.IsUnread(ctx, bob, post)
	require.NoError(t, err)
	assert.False(t, unread)

	stats, err := e.ledger.BoardStats(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, domain.BoardStats{PostCount: 1, Unread: 0}, stats[post.BoardId])
}

func TestLedgerMarkSeen(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	type call struct {
		posts []domain.PostId
		at    time.Time
	}
	var calls []call
	storage := &MockLedgerStorage{
		markReadFunc: func(subject domain.SubjectId, posts []domain.PostId, at time.Time) error {
			calls = append(calls, call{posts, at})
			return nil
		},
	}
	l := NewLedger(storage)
	posts := []domain.Post{{Id: 1, ModifiedAt: t1}, {Id: 2, ModifiedAt: t2}, {Id: 3, ModifiedAt: t1}}
	require.NoError(t, l.MarkSeen(context.Background(), bob, posts))

	assert.Equal(t, []call{
		{posts: []domain.PostId{1, 3}, at: t1},
		{posts: []domain.PostId{2}, at: t2},
	}, calls, "each post is marked at the version it was shown in")

	calls = nil
	require.NoError(t, l.MarkSeen(context.Background(), bob, nil))
	assert.Empty(t, calls)
}
