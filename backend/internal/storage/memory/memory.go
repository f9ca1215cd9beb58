// Package memory is an in-process implementation of the catalog, post and
// ledger storage. It backs the "memory" storage mode and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/itchan-dev/bbs/shared/domain"
	"github.com/itchan-dev/bbs/shared/errors"
)

type markKey struct {
	subject domain.SubjectId
	post    domain.PostId
}

// Store keeps everything in maps. mu guards the catalog and the posts, lmu
// guards the ledger. When both are needed mu is taken first.
type Store struct {
	mu         sync.RWMutex
	categories map[domain.CategoryId]*domain.Category
	boards     map[domain.BoardId]*domain.Board
	posts      map[domain.PostId]*domain.Post
	ignores    map[domain.SubjectId]map[domain.BoardId]struct{}
	lastId     int64

	lmu   sync.RWMutex
	marks map[markKey]time.Time

	now func() time.Time
}

func New() *Store {
	return &Store{
		categories: make(map[domain.CategoryId]*domain.Category),
		boards:     make(map[domain.BoardId]*domain.Board),
		posts:      make(map[domain.PostId]*domain.Post),
		ignores:    make(map[domain.SubjectId]map[domain.BoardId]struct{}),
		marks:      make(map[markKey]time.Time),
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *Store) nextId() int64 {
	s.lastId++
	return s.lastId
}

// Ping satisfies the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// =========================================================================
// Categories
// =========================================================================

func (s *Store) CreateCategory(ctx context.Context, data domain.CategoryCreationData) (domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkCategoryUnique(0, data.Name, data.Prefix); err != nil {
		return domain.Category{}, err
	}
	cat := &domain.Category{
		Id:        s.nextId(),
		Name:      data.Name,
		Prefix:    data.Prefix,
		Locks:     data.Locks,
		CreatedAt: s.now(),
	}
	s.categories[cat.Id] = cat
	return *cat, nil
}

func (s *Store) GetCategory(ctx context.Context, id domain.CategoryId) (domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cat, ok := s.categories[id]
	if !ok {
		return domain.Category{}, errors.NotFound("category", fmt.Sprint(id))
	}
	return *cat, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Category, 0, len(s.categories))
	for _, cat := range s.categories {
		result = append(result, *cat)
	}
	sort.Slice(result, func(i, j int) bool {
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})
	return result, nil
}

func (s *Store) UpdateCategory(ctx context.Context, id domain.CategoryId, update domain.CategoryUpdate) (domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, ok := s.categories[id]
	if !ok {
		return domain.Category{}, errors.NotFound("category", fmt.Sprint(id))
	}
	name, prefix := cat.Name, cat.Prefix
	if update.Name != nil {
		name = *update.Name
	}
	if update.Prefix != nil {
		prefix = *update.Prefix
	}
	if err := s.checkCategoryUnique(id, name, prefix); err != nil {
		return domain.Category{}, err
	}
	cat.Name, cat.Prefix = name, prefix
	if update.Locks != nil {
		cat.Locks = *update.Locks
	}
	return *cat, nil
}

// DeleteCategory removes the category and everything below it.
func (s *Store) DeleteCategory(ctx context.Context, id domain.CategoryId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return errors.NotFound("category", fmt.Sprint(id))
	}
	for boardId, b := range s.boards {
		if b.CategoryId == id {
			s.deleteBoardLocked(boardId)
		}
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) checkCategoryUnique(self domain.CategoryId, name domain.CategoryName, prefix domain.CategoryPrefix) error {
	for _, other := range s.categories {
		if other.Id == self {
			continue
		}
		if strings.EqualFold(other.Name, name) {
			return errors.NameConflict("category", name)
		}
		if strings.EqualFold(other.Prefix, prefix) {
			return errors.New(errors.KindNameConflict, "category", prefix,
				fmt.Sprintf("Prefix '%s' is already used by category '%s'", prefix, other.Name))
		}
	}
	return nil
}

// =========================================================================
// Boards
// =========================================================================

func (s *Store) CreateBoard(ctx context.Context, data domain.BoardCreationData) (domain.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[data.CategoryId]; !ok {
		return domain.Board{}, errors.NotFound("category", fmt.Sprint(data.CategoryId))
	}
	order := data.Order
	if order <= 0 {
		order = s.nextFreeOrder(data.CategoryId)
	}
	if err := s.checkBoardUnique(0, data.CategoryId, data.Name, order); err != nil {
		return domain.Board{}, err
	}

	b := &domain.Board{
		Id:          s.nextId(),
		CategoryId:  data.CategoryId,
		Name:        data.Name,
		Order:       order,
		Locks:       data.Locks,
		NextPostSeq: 1,
		Mandatory:   data.Mandatory,
		CreatedAt:   s.now(),
	}
	s.boards[b.Id] = b
	return s.boardView(b), nil
}

func (s *Store) GetBoard(ctx context.Context, id domain.BoardId) (domain.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[id]
	if !ok {
		return domain.Board{}, errors.NotFound("board", fmt.Sprint(id))
	}
	return s.boardView(b), nil
}

func (s *Store) ListBoards(ctx context.Context) ([]domain.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Board, 0, len(s.boards))
	for _, b := range s.boards {
		result = append(result, s.boardView(b))
	}
	sort.Slice(result, func(i, j int) bool {
		ci, cj := strings.ToLower(result[i].CategoryName), strings.ToLower(result[j].CategoryName)
		if ci != cj {
			return ci < cj
		}
		return result[i].Order < result[j].Order
	})
	return result, nil
}

func (s *Store) UpdateBoard(ctx context.Context, id domain.BoardId, update domain.BoardUpdate) (domain.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.boards[id]
	if !ok {
		return domain.Board{}, errors.NotFound("board", fmt.Sprint(id))
	}
	name, order := b.Name, b.Order
	if update.Name != nil {
		name = *update.Name
	}
	if update.Order != nil {
		order = *update.Order
	}
	if err := s.checkBoardUnique(id, b.CategoryId, name, order); err != nil {
		return domain.Board{}, err
	}
	b.Name, b.Order = name, order
	if update.Locks != nil {
		b.Locks = *update.Locks
	}
	if update.Mandatory != nil {
		b.Mandatory = *update.Mandatory
	}
	return s.boardView(b), nil
}

func (s *Store) DeleteBoard(ctx context.Context, id domain.BoardId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.boards[id]; !ok {
		return errors.NotFound("board", fmt.Sprint(id))
	}
	s.deleteBoardLocked(id)
	return nil
}

// deleteBoardLocked drops a board with its posts, marks and ignore rows.
// The caller holds mu.
func (s *Store) deleteBoardLocked(id domain.BoardId) {
	var postIds []domain.PostId
	for pid, p := range s.posts {
		if p.BoardId == id {
			postIds = append(postIds, pid)
			delete(s.posts, pid)
		}
	}
	s.dropMarks(postIds)
	for _, boards := range s.ignores {
		delete(boards, id)
	}
	delete(s.boards, id)
}

func (s *Store) checkBoardUnique(self domain.BoardId, category domain.CategoryId, name domain.BoardName, order domain.BoardOrder) error {
	for _, other := range s.boards {
		if other.Id == self || other.CategoryId != category {
			continue
		}
		if strings.EqualFold(other.Name, name) {
			return errors.NameConflict("board", name)
		}
		if other.Order == order {
			return errors.OrderConflict("board", fmt.Sprint(order))
		}
	}
	return nil
}

func (s *Store) nextFreeOrder(category domain.CategoryId) domain.BoardOrder {
	taken := make(map[domain.BoardOrder]bool)
	for _, b := range s.boards {
		if b.CategoryId == category {
			taken[b.Order] = true
		}
	}
	order := 1
	for taken[order] {
		order++
	}
	return order
}

func (s *Store) boardView(b *domain.Board) domain.Board {
	view := *b
	if cat, ok := s.categories[b.CategoryId]; ok {
		view.CategoryName = cat.Name
		view.CategoryPrefix = cat.Prefix
	}
	return view
}

func (s *Store) SetIgnored(ctx context.Context, subject domain.SubjectId, board domain.BoardId, ignored bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.boards[board]; !ok {
		return errors.NotFound("board", fmt.Sprint(board))
	}
	if !ignored {
		delete(s.ignores[subject], board)
		return nil
	}
	if s.ignores[subject] == nil {
		s.ignores[subject] = make(map[domain.BoardId]struct{})
	}
	s.ignores[subject][board] = struct{}{}
	return nil
}

func (s *Store) IgnoredBoards(ctx context.Context, subject domain.SubjectId) ([]domain.BoardId, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.BoardId, 0, len(s.ignores[subject]))
	for id := range s.ignores[subject] {
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}

// =========================================================================
// Posts
// =========================================================================

func (s *Store) CreatePost(ctx context.Context, data domain.PostCreationData) (domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.boards[data.BoardId]
	if !ok {
		return domain.Post{}, errors.NotFound("board", fmt.Sprint(data.BoardId))
	}
	p := &domain.Post{
		Id:         s.nextId(),
		BoardId:    data.BoardId,
		AuthorId:   copyId(data.AuthorId),
		AuthorName: data.AuthorName,
		Subject:    data.Subject,
		Body:       data.Body,
		CreatedAt:  data.CreatedAt,
		ModifiedAt: data.CreatedAt,
		Seq:        b.NextPostSeq,
	}
	b.NextPostSeq++
	s.posts[p.Id] = p

	if p.AuthorId != nil {
		s.lmu.Lock()
		s.advanceMark(markKey{*p.AuthorId, p.Id}, p.ModifiedAt)
		s.lmu.Unlock()
	}
	return copyPost(p), nil
}

func (s *Store) GetPost(ctx context.Context, board domain.BoardId, seq domain.PostSeq) (domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.posts {
		if p.BoardId == board && p.Seq == seq {
			return copyPost(p), nil
		}
	}
	alias := fmt.Sprint(seq)
	if b, ok := s.boards[board]; ok {
		alias = s.boardView(b).Alias() + "/" + alias
	}
	return domain.Post{}, errors.NotFound("post", alias)
}

func (s *Store) ListPosts(ctx context.Context, board domain.BoardId) ([]domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.boardPosts(board), nil
}

func (s *Store) UpdatePost(ctx context.Context, id domain.PostId, update domain.PostUpdate) (domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return domain.Post{}, errors.NotFound("post", fmt.Sprint(id))
	}
	if update.Subject != nil {
		p.Subject = *update.Subject
	}
	if update.Body != nil {
		p.Body = *update.Body
	}
	p.ModifiedAt = update.ModifiedAt
	return copyPost(p), nil
}

func (s *Store) DeletePost(ctx context.Context, id domain.PostId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return errors.NotFound("post", fmt.Sprint(id))
	}
	delete(s.posts, id)
	s.dropMarks([]domain.PostId{id})
	return nil
}

func (s *Store) SquishPosts(ctx context.Context, board domain.BoardId) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.boards[board]
	if !ok {
		return 0, errors.NotFound("board", fmt.Sprint(board))
	}
	var posts []*domain.Post
	for _, p := range s.posts {
		if p.BoardId == board {
			posts = append(posts, p)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.Before(posts[j].CreatedAt)
		}
		return posts[i].Id < posts[j].Id
	})
	for i, p := range posts {
		p.Seq = i + 1
	}
	b.NextPostSeq = len(posts) + 1
	return len(posts), nil
}

// boardPosts returns copies ordered by sequence. The caller holds mu.
func (s *Store) boardPosts(board domain.BoardId) []domain.Post {
	result := make([]domain.Post, 0)
	for _, p := range s.posts {
		if p.BoardId == board {
			result = append(result, copyPost(p))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	return result
}

// =========================================================================
// Ledger
// =========================================================================

func (s *Store) MarkRead(ctx context.Context, subject domain.SubjectId, posts []domain.PostId, at time.Time) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.lmu.Lock()
	defer s.lmu.Unlock()

	for _, id := range posts {
		if _, ok := s.posts[id]; !ok {
			continue
		}
		s.advanceMark(markKey{subject, id}, at)
	}
	return nil
}

func (s *Store) GetReadMark(ctx context.Context, subject domain.SubjectId, post domain.PostId) (*domain.ReadMark, error) {
	s.lmu.RLock()
	defer s.lmu.RUnlock()

	at, ok := s.marks[markKey{subject, post}]
	if !ok {
		return nil, nil
	}
	return &domain.ReadMark{SubjectId: subject, PostId: post, ReadAt: at}, nil
}

func (s *Store) UnreadPosts(ctx context.Context, subject domain.SubjectId, board domain.BoardId) ([]domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.lmu.RLock()
	defer s.lmu.RUnlock()

	var result []domain.Post
	for _, p := range s.boardPosts(board) {
		if s.isUnread(subject, p) {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *Store) BoardStats(ctx context.Context, subject domain.SubjectId) (map[domain.BoardId]domain.BoardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.lmu.RLock()
	defer s.lmu.RUnlock()

	stats := make(map[domain.BoardId]domain.BoardStats, len(s.boards))
	for _, p := range s.posts {
		st := stats[p.BoardId]
		st.PostCount++
		if s.isUnread(subject, *p) {
			st.Unread++
		}
		stats[p.BoardId] = st
	}
	return stats, nil
}

// advanceMark moves a mark forward only. The caller holds lmu.
func (s *Store) advanceMark(key markKey, at time.Time) {
	if existing, ok := s.marks[key]; ok && !at.After(existing) {
		return
	}
	s.marks[key] = at
}

// isUnread applies domain.IsUnread to the stored mark. The caller holds lmu.
func (s *Store) isUnread(subject domain.SubjectId, p domain.Post) bool {
	at, ok := s.marks[markKey{subject, p.Id}]
	if !ok {
		return true
	}
	return domain.IsUnread(p, &domain.ReadMark{SubjectId: subject, PostId: p.Id, ReadAt: at})
}

// dropMarks removes the marks of deleted posts. The caller holds mu.
func (s *Store) dropMarks(posts []domain.PostId) {
	if len(posts) == 0 {
		return
	}
	gone := make(map[domain.PostId]bool, len(posts))
	for _, id := range posts {
		gone[id] = true
	}
	s.lmu.Lock()
	defer s.lmu.Unlock()
	for key := range s.marks {
		if gone[key.post] {
			delete(s.marks, key)
		}
	}
}

func copyId(id *domain.SubjectId) *domain.SubjectId {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func copyPost(p *domain.Post) domain.Post {
	c := *p
	c.AuthorId = copyId(p.AuthorId)
	return c
}
