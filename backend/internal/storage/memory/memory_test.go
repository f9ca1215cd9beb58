package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/itchan-dev/bbs/backend/internal/service"
	"github.com/itchan-dev/bbs/shared/domain"
	"github.com/itchan-dev/bbs/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ service.CatalogStorage = (*Store)(nil)
	_ service.PostStorage    = (*Store)(nil)
	_ service.LedgerStorage  = (*Store)(nil)
)

var ctx = context.Background()

func seedBoard(t *testing.T, s *Store) (domain.Category, domain.Board) {
	t.Helper()
	cat, err := s.CreateCategory(ctx, domain.CategoryCreationData{Name: "Announcements", Prefix: "ANN", Locks: "see:all()"})
	require.NoError(t, err)
	board, err := s.CreateBoard(ctx, domain.BoardCreationData{CategoryId: cat.Id, Name: "Staff News", Order: 1, Locks: "read:all()"})
	require.NoError(t, err)
	return cat, board
}

func newPost(t *testing.T, s *Store, board domain.BoardId, author domain.SubjectId, at time.Time) domain.Post {
	t.Helper()
	p, err := s.CreatePost(ctx, domain.PostCreationData{BoardId: board, AuthorId: &author, AuthorName: "a", Subject: "s", Body: "b", CreatedAt: at})
	require.NoError(t, err)
	return p
}

func TestCategoryUniqueness(t *testing.T) {
	s := New()
	_, err := s.CreateCategory(ctx, domain.CategoryCreationData{Name: "Announcements", Prefix: "ANN"})
	require.NoError(t, err)

	_, err = s.CreateCategory(ctx, domain.CategoryCreationData{Name: "announcements", Prefix: "X"})
	assert.ErrorIs(t, err, errors.ErrNameConflict)

	_, err = s.CreateCategory(ctx, domain.CategoryCreationData{Name: "Other", Prefix: "ann"})
	assert.ErrorIs(t, err, errors.ErrNameConflict)

	other, err := s.CreateCategory(ctx, domain.CategoryCreationData{Name: "Other", Prefix: "OTH"})
	require.NoError(t, err)

	name := "ANNOUNCEMENTS"
	_, err = s.UpdateCategory(ctx, other.Id, domain.CategoryUpdate{Name: &name})
	assert.ErrorIs(t, err, errors.ErrNameConflict)

	// renaming to a different case of its own name is fine
	own := "OTHER"
	renamed, err := s.UpdateCategory(ctx, other.Id, domain.CategoryUpdate{Name: &own})
	require.NoError(t, err)
	assert.Equal(t, "OTHER", renamed.Name)
}

func TestBoardUniquenessAndAlias(t *testing.T) {
	s := New()
	cat, board := seedBoard(t, s)
	assert.Equal(t, "ANN1", board.Alias())
	assert.Equal(t, 1, board.NextPostSeq)

	_, err := s.CreateBoard(ctx, domain.BoardCreationData{CategoryId: cat.Id, Name: "staff news", Order: 2})
	assert.ErrorIs(t, err, errors.ErrNameConflict)

	_, err = s.CreateBoard(ctx, domain.BoardCreationData{CategoryId: cat.Id, Name: "Other", Order: 1})
	assert.ErrorIs(t, err, errors.ErrOrderConflict)

	auto, err := s.CreateBoard(ctx, domain.BoardCreationData{CategoryId: cat.Id, Name: "Other", Order: 0})
	require.NoError(t, err)
	assert.Equal(t, 2, auto.Order)

	order := 2
	_, err = s.UpdateBoard(ctx, board.Id, domain.BoardUpdate{Order: &order})
	assert.ErrorIs(t, err, errors.ErrOrderConflict)

	prefix := "NEW"
	_, err = s.UpdateCategory(ctx, cat.Id, domain.CategoryUpdate{Prefix: &prefix})
	require.NoError(t, err)
	reloaded, err := s.GetBoard(ctx, board.Id)
	require.NoError(t, err)
	assert.Equal(t, "NEW1", reloaded.Alias())
}

func TestAutoOrderTakesLowestFree(t *testing.T) {
	s := New()
	cat, _ := seedBoard(t, s)
	_, err := s.CreateBoard(ctx, domain.BoardCreationData{CategoryId: cat.Id, Name: "Third", Order: 3})
	require.NoError(t, err)

	gap, err := s.CreateBoard(ctx, domain.BoardCreationData{CategoryId: cat.Id, Name: "Gap", Order: 0})
	require.NoError(t, err)
	assert.Equal(t, 2, gap.Order)

	next, err := s.CreateBoard(ctx, domain.BoardCreationData{CategoryId: cat.Id, Name: "Next", Order: 0})
	require.NoError(t, err)
	assert.Equal(t, 4, next.Order)
}

func TestPostSequenceAndAuthorMark(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first := newPost(t, s, board.Id, 7, at)
	second := newPost(t, s, board.Id, 7, at.Add(time.Second))
	assert.Equal(t, 1, first.Seq)
	assert.Equal(t, 2, second.Seq)

	mark, err := s.GetReadMark(ctx, 7, first.Id)
	require.NoError(t, err)
	require.NotNil(t, mark)
	assert.Equal(t, at, mark.ReadAt)

	unread, err := s.UnreadPosts(ctx, 7, board.Id)
	require.NoError(t, err)
	assert.Empty(t, unread)

	unread, err = s.UnreadPosts(ctx, 8, board.Id)
	require.NoError(t, err)
	assert.Len(t, unread, 2)
}

func TestConcurrentPostsGetDistinctSequences(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			author := domain.SubjectId(1)
			_, err := s.CreatePost(ctx, domain.PostCreationData{BoardId: board.Id, AuthorId: &author, Subject: "s", Body: "b", CreatedAt: time.Now()})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	posts, err := s.ListPosts(ctx, board.Id)
	require.NoError(t, err)
	require.Len(t, posts, 50)
	for i, p := range posts {
		assert.Equal(t, i+1, p.Seq)
	}
}

func TestMarkReadOnlyAdvances(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := newPost(t, s, board.Id, 1, t0)

	require.NoError(t, s.MarkRead(ctx, 2, []domain.PostId{p.Id}, t0.Add(time.Hour)))
	require.NoError(t, s.MarkRead(ctx, 2, []domain.PostId{p.Id}, t0.Add(time.Hour)))
	require.NoError(t, s.MarkRead(ctx, 2, []domain.PostId{p.Id}, t0))

	mark, err := s.GetReadMark(ctx, 2, p.Id)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), mark.ReadAt)

	none, err := s.GetReadMark(ctx, 3, p.Id)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestEditMakesPostUnread(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := newPost(t, s, board.Id, 1, t0)
	require.NoError(t, s.MarkRead(ctx, 2, []domain.PostId{p.Id}, t0.Add(time.Minute)))

	body := "edited"
	_, err := s.UpdatePost(ctx, p.Id, domain.PostUpdate{Body: &body, ModifiedAt: t0.Add(time.Hour)})
	require.NoError(t, err)

	unread, err := s.UnreadPosts(ctx, 2, board.Id)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "edited", unread[0].Body)

	stats, err := s.BoardStats(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.BoardStats{PostCount: 1, Unread: 1}, stats[board.Id])
}

func TestDeleteBoardCascades(t *testing.T) {
	s := New()
	cat, board := seedBoard(t, s)
	p := newPost(t, s, board.Id, 1, time.Now())
	require.NoError(t, s.SetIgnored(ctx, 2, board.Id, true))

	require.NoError(t, s.DeleteBoard(ctx, board.Id))

	_, err := s.GetBoard(ctx, board.Id)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	_, err = s.GetPost(ctx, board.Id, p.Seq)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	mark, err := s.GetReadMark(ctx, 1, p.Id)
	require.NoError(t, err)
	assert.Nil(t, mark)
	ignored, err := s.IgnoredBoards(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, ignored)

	// the category survives and the order is free again
	_, err = s.CreateBoard(ctx, domain.BoardCreationData{CategoryId: cat.Id, Name: "Staff News", Order: 1})
	assert.NoError(t, err)
}

func TestDeleteCategoryCascades(t *testing.T) {
	s := New()
	cat, board := seedBoard(t, s)
	p := newPost(t, s, board.Id, 1, time.Now())

	require.NoError(t, s.DeleteCategory(ctx, cat.Id))

	boards, err := s.ListBoards(ctx)
	require.NoError(t, err)
	assert.Empty(t, boards)
	mark, err := s.GetReadMark(ctx, 1, p.Id)
	require.NoError(t, err)
	assert.Nil(t, mark)
	assert.ErrorIs(t, s.DeleteCategory(ctx, cat.Id), errors.ErrNotFound)
}

func TestSquishPosts(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var posts []domain.Post
	for i := 0; i < 4; i++ {
		posts = append(posts, newPost(t, s, board.Id, 1, t0.Add(time.Duration(i)*time.Minute)))
	}
	require.NoError(t, s.DeletePost(ctx, posts[0].Id))
	require.NoError(t, s.DeletePost(ctx, posts[2].Id))

	count, err := s.SquishPosts(ctx, board.Id)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	listed, err := s.ListPosts(ctx, board.Id)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, posts[1].Id, listed[0].Id)
	assert.Equal(t, 1, listed[0].Seq)
	assert.Equal(t, posts[3].Id, listed[1].Id)
	assert.Equal(t, 2, listed[1].Seq)

	next := newPost(t, s, board.Id, 1, t0.Add(time.Hour))
	assert.Equal(t, 3, next.Seq)
}

func TestIgnoredBoards(t *testing.T) {
	s := New()
	_, board := seedBoard(t, s)

	require.NoError(t, s.SetIgnored(ctx, 5, board.Id, true))
	require.NoError(t, s.SetIgnored(ctx, 5, board.Id, true))
	ids, err := s.IgnoredBoards(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []domain.BoardId{board.Id}, ids)

	require.NoError(t, s.SetIgnored(ctx, 5, board.Id, false))
	ids, err = s.IgnoredBoards(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, ids)

	assert.ErrorIs(t, s.SetIgnored(ctx, 5, 999, true), errors.ErrNotFound)
}
