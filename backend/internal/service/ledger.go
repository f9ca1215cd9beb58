package service

import (
	"context"
	"time"

	"github.com/itchan-dev/bbs/shared/domain"
)

// to mock service in tests
type LedgerService interface {
	MarkRead(ctx context.Context, s domain.Subject, post domain.Post, at time.Time) error
	MarkAllRead(ctx context.Context, s domain.Subject, posts []domain.Post, at time.Time) error
	MarkSeen(ctx context.Context, s domain.Subject, posts []domain.Post) error
	UnreadFor(ctx context.Context, s domain.Subject, board domain.Board) ([]domain.Post, error)
	IsUnread(ctx context.Context, s domain.Subject, post domain.Post) (bool, error)
	BoardStats(ctx context.Context, s domain.Subject) (map[domain.BoardId]domain.BoardStats, error)
}

// Ledger keeps one read mark per (subject, post). Marks only move forward.
type Ledger struct {
	storage LedgerStorage
}

type LedgerStorage interface {
	// MarkRead upserts the marks of posts to max(existing, at).
	MarkRead(ctx context.Context, subject domain.SubjectId, posts []domain.PostId, at time.Time) error
	GetReadMark(ctx context.Context, subject domain.SubjectId, post domain.PostId) (*domain.ReadMark, error)
	// UnreadPosts returns the posts of board unread by subject, ordered by sequence.
	UnreadPosts(ctx context.Context, subject domain.SubjectId, board domain.BoardId) ([]domain.Post, error)
	BoardStats(ctx context.Context, subject domain.SubjectId) (map[domain.BoardId]domain.BoardStats, error)
}

func NewLedger(storage LedgerStorage) LedgerService {
	return &Ledger{storage}
}

func (l *Ledger) MarkRead(ctx context.Context, s domain.Subject, post domain.Post, at time.Time) error {
	return l.storage.MarkRead(ctx, s.Id, []domain.PostId{post.Id}, at)
}

func (l *Ledger) MarkAllRead(ctx context.Context, s domain.Subject, posts []domain.Post, at time.Time) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]domain.PostId, len(posts))
	for i, p := range posts {
		ids[i] = p.Id
	}
	return l.storage.MarkRead(ctx, s.Id, ids, at)
}

// MarkSeen marks each post read at the ModifiedAt of the version the subject
// was shown. A later edit stays unread.
func (l *Ledger) MarkSeen(ctx context.Context, s domain.Subject, posts []domain.Post) error {
	byTime := make(map[time.Time][]domain.PostId)
	var order []time.Time
	for _, p := range posts {
		at := p.ModifiedAt
		if _, ok := byTime[at]; !ok {
			order = append(order, at)
		}
		byTime[at] = append(byTime[at], p.Id)
	}
	for _, at := range order {
		if err := l.storage.MarkRead(ctx, s.Id, byTime[at], at); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) UnreadFor(ctx context.Context, s domain.Subject, board domain.Board) ([]domain.Post, error) {
	return l.storage.UnreadPosts(ctx, s.Id, board.Id)
}

func (l *Ledger) IsUnread(ctx context.Context, s domain.Subject, post domain.Post) (bool, error) {
	mark, err := l.storage.GetReadMark(ctx, s.Id, post.Id)
	if err != nil {
		return false, err
	}
	return domain.IsUnread(post, mark), nil
}

func (l *Ledger) BoardStats(ctx context.Context, s domain.Subject) (map[domain.BoardId]domain.BoardStats, error) {
	return l.storage.BoardStats(ctx, s.Id)
}
