package pg

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/itchan-dev/bbs/shared/domain"
	"github.com/itchan-dev/bbs/shared/errors"
)

// =========================================================================
// Public Methods (satisfy the service.PostStorage interface)
// =========================================================================

// CreatePost takes the next sequence number of the board, inserts the post
// and writes the author's read mark in one transaction.
func (s *Storage) CreatePost(ctx context.Context, data domain.PostCreationData) (domain.Post, error) {
	var post domain.Post
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		post, err = s.createPost(ctx, tx, data)
		if err != nil {
			return err
		}
		if post.AuthorId != nil {
			return s.markRead(ctx, tx, *post.AuthorId, []domain.PostId{post.Id}, post.CreatedAt)
		}
		return nil
	})
	return post, err
}

func (s *Storage) GetPost(ctx context.Context, board domain.BoardId, seq domain.PostSeq) (domain.Post, error) {
	return s.getPost(ctx, s.db, board, seq)
}

func (s *Storage) ListPosts(ctx context.Context, board domain.BoardId) ([]domain.Post, error) {
	return s.queryPosts(ctx, s.db, "SELECT "+postColumns+" FROM posts AS p WHERE p.board_id = $1 ORDER BY p.seq", board)
}

func (s *Storage) UpdatePost(ctx context.Context, id domain.PostId, update domain.PostUpdate) (domain.Post, error) {
	return s.updatePost(ctx, s.db, id, update)
}

// DeletePost removes the post; its read marks go through ON DELETE CASCADE.
func (s *Storage) DeletePost(ctx context.Context, id domain.PostId) error {
	return s.deletePost(ctx, s.db, id)
}

func (s *Storage) SquishPosts(ctx context.Context, board domain.BoardId) (int, error) {
	var count int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		count, err = s.squishPosts(ctx, tx, board)
		return err
	})
	return count, err
}

// =========================================================================
// Internal Methods (Core Database Logic)
// These methods accept a Querier and are transaction-agnostic.
// =========================================================================

const postColumns = "p.id, p.board_id, p.seq, p.author_id, p.author_name, p.subject, p.body, p.created, p.modified"

func scanPost(row interface{ Scan(...any) error }) (domain.Post, error) {
	var (
		p        domain.Post
		authorId sql.NullInt64
	)
	err := row.Scan(&p.Id, &p.BoardId, &p.Seq, &authorId, &p.AuthorName, &p.Subject, &p.Body, &p.CreatedAt, &p.ModifiedAt)
	if err != nil {
		return domain.Post{}, err
	}
	if authorId.Valid {
		id := authorId.Int64
		p.AuthorId = &id
	}
	p.CreatedAt = utc(p.CreatedAt)
	p.ModifiedAt = utc(p.ModifiedAt)
	return p, nil
}

func (s *Storage) createPost(ctx context.Context, q Querier, data domain.PostCreationData) (domain.Post, error) {
	var seq domain.PostSeq
	err := q.QueryRowContext(ctx, `
		UPDATE boards SET next_post_seq = next_post_seq + 1
		WHERE id = $1
		RETURNING next_post_seq - 1`,
		data.BoardId,
	).Scan(&seq)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return domain.Post{}, errors.NotFound("board", fmt.Sprint(data.BoardId))
		}
		return domain.Post{}, fmt.Errorf("failed to allocate post number: %w", err)
	}

	post, err := scanPost(q.QueryRowContext(ctx, `
		INSERT INTO posts AS p (board_id, seq, author_id, author_name, subject, body, created, modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING `+postColumns,
		data.BoardId, seq, data.AuthorId, data.AuthorName, data.Subject, data.Body, data.CreatedAt,
	))
	if err != nil {
		return domain.Post{}, fmt.Errorf("failed to insert post: %w", err)
	}
	return post, nil
}

func (s *Storage) getPost(ctx context.Context, q Querier, board domain.BoardId, seq domain.PostSeq) (domain.Post, error) {
	post, err := scanPost(q.QueryRowContext(ctx,
		"SELECT "+postColumns+" FROM posts AS p WHERE p.board_id = $1 AND p.seq = $2", board, seq))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return domain.Post{}, errors.NotFound("post", fmt.Sprintf("%d/%d", board, seq))
		}
		return domain.Post{}, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

func (s *Storage) queryPosts(ctx context.Context, q Querier, query string, args ...any) ([]domain.Post, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}
	return posts, nil
}

func (s *Storage) updatePost(ctx context.Context, q Querier, id domain.PostId, update domain.PostUpdate) (domain.Post, error) {
	post, err := scanPost(q.QueryRowContext(ctx, `
		UPDATE posts AS p SET
			subject = COALESCE($2, p.subject),
			body = COALESCE($3, p.body),
			modified = $4
		WHERE p.id = $1
		RETURNING `+postColumns,
		id, update.Subject, update.Body, update.ModifiedAt,
	))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return domain.Post{}, errors.NotFound("post", fmt.Sprint(id))
		}
		return domain.Post{}, fmt.Errorf("failed to update post: %w", err)
	}
	return post, nil
}

func (s *Storage) deletePost(ctx context.Context, q Querier, id domain.PostId) error {
	result, err := q.ExecContext(ctx, "DELETE FROM posts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows for post delete: %w", err)
	}
	if deleted == 0 {
		return errors.NotFound("post", fmt.Sprint(id))
	}
	return nil
}

// squishPosts renumbers from 1 in creation order. The board row is locked so
// concurrent posts wait for the new numbering.
func (s *Storage) squishPosts(ctx context.Context, q Querier, board domain.BoardId) (int, error) {
	var locked domain.BoardId
	err := q.QueryRowContext(ctx, "SELECT id FROM boards WHERE id = $1 FOR UPDATE", board).Scan(&locked)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return 0, errors.NotFound("board", fmt.Sprint(board))
		}
		return 0, fmt.Errorf("failed to lock board: %w", err)
	}

	if _, err := q.ExecContext(ctx, "SET CONSTRAINTS posts_seq_key DEFERRED"); err != nil {
		return 0, fmt.Errorf("failed to defer post numbering constraint: %w", err)
	}
	result, err := q.ExecContext(ctx, `
		UPDATE posts AS p SET seq = r.n
		FROM (
			SELECT id, row_number() OVER (ORDER BY created, id) AS n
			FROM posts
			WHERE board_id = $1
		) AS r
		WHERE p.id = r.id`,
		board,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to renumber posts: %w", err)
	}
	renumbered, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows for renumbering: %w", err)
	}

	if _, err := q.ExecContext(ctx, "UPDATE boards SET next_post_seq = $2 WHERE id = $1", board, renumbered+1); err != nil {
		return 0, fmt.Errorf("failed to reset post numbering: %w", err)
	}
	return int(renumbered), nil
}
