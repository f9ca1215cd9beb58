package pg

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/itchan-dev/bbs/shared/domain"
	"github.com/itchan-dev/bbs/shared/errors"
	sharedpg "github.com/itchan-dev/bbs/shared/storage/pg"
)

// =========================================================================
// Public Methods (satisfy the service.CatalogStorage interface)
// =========================================================================

// CreateBoard inserts a board. An order <= 0 takes the next free order of
// the category.
func (s *Storage) CreateBoard(ctx context.Context, data domain.BoardCreationData) (domain.Board, error) {
	var board domain.Board
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := s.createBoard(ctx, tx, data)
		if err != nil {
			return err
		}
		board, err = s.getBoard(ctx, tx, id)
		return err
	})
	return board, err
}

func (s *Storage) GetBoard(ctx context.Context, id domain.BoardId) (domain.Board, error) {
	return s.getBoard(ctx, s.db, id)
}

func (s *Storage) ListBoards(ctx context.Context) ([]domain.Board, error) {
	return s.listBoards(ctx, s.db)
}

func (s *Storage) UpdateBoard(ctx context.Context, id domain.BoardId, update domain.BoardUpdate) (domain.Board, error) {
	var board domain.Board
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.updateBoard(ctx, tx, id, update); err != nil {
			return err
		}
		var err error
		board, err = s.getBoard(ctx, tx, id)
		return err
	})
	return board, err
}

// DeleteBoard removes the board; posts, read marks and ignore rows go with it
// through ON DELETE CASCADE.
func (s *Storage) DeleteBoard(ctx context.Context, id domain.BoardId) error {
	return s.deleteBoard(ctx, s.db, id)
}

func (s *Storage) SetIgnored(ctx context.Context, subject domain.SubjectId, board domain.BoardId, ignored bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.setIgnored(ctx, tx, subject, board, ignored)
	})
}

func (s *Storage) IgnoredBoards(ctx context.Context, subject domain.SubjectId) ([]domain.BoardId, error) {
	return s.ignoredBoards(ctx, s.db, subject)
}

// =========================================================================
// Internal Methods (Core Database Logic)
// These methods accept a Querier and are transaction-agnostic.
// =========================================================================

const boardSelect = `
	SELECT b.id, b.category_id, b.name, b.ord, b.locks, b.next_post_seq, b.mandatory, b.created,
		c.name, c.prefix
	FROM boards AS b
	JOIN categories AS c ON c.id = b.category_id`

func scanBoard(row interface{ Scan(...any) error }) (domain.Board, error) {
	var b domain.Board
	err := row.Scan(&b.Id, &b.CategoryId, &b.Name, &b.Order, &b.Locks, &b.NextPostSeq, &b.Mandatory, &b.CreatedAt,
		&b.CategoryName, &b.CategoryPrefix)
	if err != nil {
		return domain.Board{}, err
	}
	b.CreatedAt = utc(b.CreatedAt)
	return b, nil
}

func (s *Storage) createBoard(ctx context.Context, q Querier, data domain.BoardCreationData) (domain.BoardId, error) {
	var id domain.BoardId
	err := q.QueryRowContext(ctx, `
		INSERT INTO boards (category_id, name, ord, locks, mandatory)
		VALUES ($1, $2,
			CASE WHEN $3::int > 0 THEN $3::int
			ELSE (SELECT MIN(n)::int
				FROM generate_series(1, (SELECT COUNT(*) + 1 FROM boards WHERE category_id = $1)) AS n
				WHERE n NOT IN (SELECT ord FROM boards WHERE category_id = $1)) END,
			$4, $5)
		RETURNING id`,
		data.CategoryId, data.Name, data.Order, data.Locks, data.Mandatory,
	).Scan(&id)
	if err != nil {
		if sharedpg.ForeignKeyViolation(err) {
			return 0, errors.NotFound("category", fmt.Sprint(data.CategoryId))
		}
		return 0, conflict(err, "create board", "board", data.Name, fmt.Sprint(data.Order))
	}
	return id, nil
}

func (s *Storage) getBoard(ctx context.Context, q Querier, id domain.BoardId) (domain.Board, error) {
	b, err := scanBoard(q.QueryRowContext(ctx, boardSelect+" WHERE b.id = $1", id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return domain.Board{}, errors.NotFound("board", fmt.Sprint(id))
		}
		return domain.Board{}, fmt.Errorf("failed to get board: %w", err)
	}
	return b, nil
}

func (s *Storage) listBoards(ctx context.Context, q Querier) ([]domain.Board, error) {
	rows, err := q.QueryContext(ctx, boardSelect+" ORDER BY lower(c.name), b.ord")
	if err != nil {
		return nil, fmt.Errorf("failed to query boards: %w", err)
	}
	defer rows.Close()

	var boards []domain.Board
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan board: %w", err)
		}
		boards = append(boards, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating boards: %w", err)
	}
	return boards, nil
}

func (s *Storage) updateBoard(ctx context.Context, q Querier, id domain.BoardId, update domain.BoardUpdate) error {
	result, err := q.ExecContext(ctx, `
		UPDATE boards SET
			name = COALESCE($2, name),
			ord = COALESCE($3, ord),
			locks = COALESCE($4, locks),
			mandatory = COALESCE($5, mandatory)
		WHERE id = $1`,
		id, update.Name, update.Order, update.Locks, update.Mandatory,
	)
	if err != nil {
		order := ""
		if update.Order != nil {
			order = fmt.Sprint(*update.Order)
		}
		return conflict(err, "update board", "board", deref(update.Name), order)
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows for board update: %w", err)
	}
	if updated == 0 {
		return errors.NotFound("board", fmt.Sprint(id))
	}
	return nil
}

func (s *Storage) deleteBoard(ctx context.Context, q Querier, id domain.BoardId) error {
	result, err := q.ExecContext(ctx, "DELETE FROM boards WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete board: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows for board delete: %w", err)
	}
	if deleted == 0 {
		return errors.NotFound("board", fmt.Sprint(id))
	}
	return nil
}

func (s *Storage) setIgnored(ctx context.Context, q Querier, subject domain.SubjectId, board domain.BoardId, ignored bool) error {
	var exists bool
	if err := q.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM boards WHERE id = $1)", board).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check board: %w", err)
	}
	if !exists {
		return errors.NotFound("board", fmt.Sprint(board))
	}

	var err error
	if ignored {
		_, err = q.ExecContext(ctx, `
			INSERT INTO board_ignores (subject_id, board_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			subject, board)
	} else {
		_, err = q.ExecContext(ctx, "DELETE FROM board_ignores WHERE subject_id = $1 AND board_id = $2", subject, board)
	}
	if err != nil {
		return fmt.Errorf("failed to update board membership: %w", err)
	}
	return nil
}

func (s *Storage) ignoredBoards(ctx context.Context, q Querier, subject domain.SubjectId) ([]domain.BoardId, error) {
	rows, err := q.QueryContext(ctx, "SELECT board_id FROM board_ignores WHERE subject_id = $1 ORDER BY board_id", subject)
	if err != nil {
		return nil, fmt.Errorf("failed to query ignored boards: %w", err)
	}
	defer rows.Close()

	var ids []domain.BoardId
	for rows.Next() {
		var id domain.BoardId
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan ignored board: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ignored boards: %w", err)
	}
	return ids, nil
}
