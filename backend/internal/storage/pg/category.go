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
// Public Methods (satisfy the service.CatalogStorage interface)
// =========================================================================

func (s *Storage) CreateCategory(ctx context.Context, data domain.CategoryCreationData) (domain.Category, error) {
	return s.createCategory(ctx, s.db, data)
}

func (s *Storage) GetCategory(ctx context.Context, id domain.CategoryId) (domain.Category, error) {
	return s.getCategory(ctx, s.db, id)
}

func (s *Storage) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.listCategories(ctx, s.db)
}

func (s *Storage) UpdateCategory(ctx context.Context, id domain.CategoryId, update domain.CategoryUpdate) (domain.Category, error) {
	return s.updateCategory(ctx, s.db, id, update)
}

// DeleteCategory removes the category; boards, posts, read marks and ignore
// rows go with it through ON DELETE CASCADE.
func (s *Storage) DeleteCategory(ctx context.Context, id domain.CategoryId) error {
	return s.deleteCategory(ctx, s.db, id)
}

// =========================================================================
// Internal Methods (Core Database Logic)
// These methods accept a Querier and are transaction-agnostic.
// =========================================================================

const categoryColumns = "id, name, prefix, locks, created"

func scanCategory(row interface{ Scan(...any) error }) (domain.Category, error) {
	var c domain.Category
	if err := row.Scan(&c.Id, &c.Name, &c.Prefix, &c.Locks, &c.CreatedAt); err != nil {
		return domain.Category{}, err
	}
	c.CreatedAt = utc(c.CreatedAt)
	return c, nil
}

func (s *Storage) createCategory(ctx context.Context, q Querier, data domain.CategoryCreationData) (domain.Category, error) {
	row := q.QueryRowContext(ctx, `
		INSERT INTO categories (name, prefix, locks)
		VALUES ($1, $2, $3)
		RETURNING `+categoryColumns,
		data.Name, data.Prefix, data.Locks,
	)
	c, err := scanCategory(row)
	if err != nil {
		return domain.Category{}, conflict(err, "create category", "category", data.Name, data.Prefix)
	}
	return c, nil
}

func (s *Storage) getCategory(ctx context.Context, q Querier, id domain.CategoryId) (domain.Category, error) {
	row := q.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE id = $1", id)
	c, err := scanCategory(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return domain.Category{}, errors.NotFound("category", fmt.Sprint(id))
		}
		return domain.Category{}, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

func (s *Storage) listCategories(ctx context.Context, q Querier) ([]domain.Category, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+categoryColumns+" FROM categories ORDER BY lower(name)")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return categories, nil
}

func (s *Storage) updateCategory(ctx context.Context, q Querier, id domain.CategoryId, update domain.CategoryUpdate) (domain.Category, error) {
	row := q.QueryRowContext(ctx, `
		UPDATE categories SET
			name = COALESCE($2, name),
			prefix = COALESCE($3, prefix),
			locks = COALESCE($4, locks)
		WHERE id = $1
		RETURNING `+categoryColumns,
		id, update.Name, update.Prefix, update.Locks,
	)
	c, err := scanCategory(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return domain.Category{}, errors.NotFound("category", fmt.Sprint(id))
		}
		return domain.Category{}, conflict(err, "update category", "category", deref(update.Name), deref(update.Prefix))
	}
	return c, nil
}

func (s *Storage) deleteCategory(ctx context.Context, q Querier, id domain.CategoryId) error {
	result, err := q.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows for category delete: %w", err)
	}
	if deleted == 0 {
		return errors.NotFound("category", fmt.Sprint(id))
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
