package pg

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/itchan-dev/bbs/shared/domain"
	"github.com/lib/pq"
)

// =========================================================================
// Public Methods (satisfy the service.LedgerStorage interface)
// =========================================================================

// MarkRead upserts one mark per post to max(existing, at). Ids of posts that
// no longer exist are skipped.
func (s *Storage) MarkRead(ctx context.Context, subject domain.SubjectId, posts []domain.PostId, at time.Time) error {
	return s.markRead(ctx, s.db, subject, posts, at)
}

// GetReadMark returns nil without an error when the subject never read the
// post.
func (s *Storage) GetReadMark(ctx context.Context, subject domain.SubjectId, post domain.PostId) (*domain.ReadMark, error) {
	return s.getReadMark(ctx, s.db, subject, post)
}

func (s *Storage) UnreadPosts(ctx context.Context, subject domain.SubjectId, board domain.BoardId) ([]domain.Post, error) {
	return s.queryPosts(ctx, s.db, `
		SELECT `+postColumns+`
		FROM posts AS p
		LEFT JOIN read_marks AS m ON m.post_id = p.id AND m.subject_id = $1
		WHERE p.board_id = $2 AND (m.read_at IS NULL OR m.read_at < p.modified)
		ORDER BY p.seq`,
		subject, board,
	)
}

func (s *Storage) BoardStats(ctx context.Context, subject domain.SubjectId) (map[domain.BoardId]domain.BoardStats, error) {
	return s.boardStats(ctx, s.db, subject)
}

// =========================================================================
// Internal Methods (Core Database Logic)
// These methods accept a Querier and are transaction-agnostic.
// =========================================================================

func (s *Storage) markRead(ctx context.Context, q Querier, subject domain.SubjectId, posts []domain.PostId, at time.Time) error {
	if len(posts) == 0 {
		return nil
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO read_marks (subject_id, post_id, read_at)
		SELECT $1, p.id, $3 FROM posts AS p WHERE p.id = ANY($2)
		ON CONFLICT (subject_id, post_id)
		DO UPDATE SET read_at = GREATEST(read_marks.read_at, EXCLUDED.read_at)`,
		subject, pq.Array(posts), at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark posts read: %w", err)
	}
	return nil
}

func (s *Storage) getReadMark(ctx context.Context, q Querier, subject domain.SubjectId, post domain.PostId) (*domain.ReadMark, error) {
	mark := domain.ReadMark{SubjectId: subject, PostId: post}
	err := q.QueryRowContext(ctx,
		"SELECT read_at FROM read_marks WHERE subject_id = $1 AND post_id = $2", subject, post,
	).Scan(&mark.ReadAt)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get read mark: %w", err)
	}
	mark.ReadAt = utc(mark.ReadAt)
	return &mark, nil
}

func (s *Storage) boardStats(ctx context.Context, q Querier, subject domain.SubjectId) (map[domain.BoardId]domain.BoardStats, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT p.board_id,
			COUNT(*),
			COUNT(*) FILTER (WHERE m.read_at IS NULL OR m.read_at < p.modified)
		FROM posts AS p
		LEFT JOIN read_marks AS m ON m.post_id = p.id AND m.subject_id = $1
		GROUP BY p.board_id`,
		subject,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query board stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[domain.BoardId]domain.BoardStats)
	for rows.Next() {
		var (
			board domain.BoardId
			st    domain.BoardStats
		)
		if err := rows.Scan(&board, &st.PostCount, &st.Unread); err != nil {
			return nil, fmt.Errorf("failed to scan board stats: %w", err)
		}
		stats[board] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating board stats: %w", err)
	}
	return stats, nil
}
