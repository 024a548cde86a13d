package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ledger/internal/domain/category"
)

// CategoryRepository implements category.Repository for PostgreSQL
type CategoryRepository struct {
	db *DB
}

func NewCategoryRepository(db *DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

const categoryColumns = `id, user_id, name, kind, created_at`

func scanCategory(row scanner) (*category.Category, error) {
	var c category.Category
	var userID sql.NullInt64
	if err := row.Scan(&c.ID, &userID, &c.Name, &c.Kind, &c.CreatedAt); err != nil {
		return nil, err
	}
	if userID.Valid {
		c.UserID = &userID.Int64
	}
	return &c, nil
}

func (r *CategoryRepository) Create(ctx context.Context, c *category.Category) error {
	query := `INSERT INTO categories (id, user_id, name, kind, created_at) VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query, c.ID, nullInt64Ptr(c.UserID), c.Name, c.Kind, c.CreatedAt)
	if isUniqueViolation(err, "") {
		return category.ErrCategoryExists
	}
	if err != nil {
		return mapError(fmt.Errorf("failed to create category: %w", err))
	}
	return nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*category.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, category.ErrCategoryNotFound
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to get category: %w", err))
	}
	return c, nil
}

// List returns system categories first, then the user's own, each by name.
func (r *CategoryRepository) List(ctx context.Context, userID int64, kind *category.Kind) ([]*category.Category, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE (user_id IS NULL OR user_id = $1)
		  AND ($2::text IS NULL OR kind = $2)
		ORDER BY user_id NULLS FIRST, LOWER(name)
	`

	var kindArg sql.NullString
	if kind != nil {
		kindArg = sql.NullString{String: string(*kind), Valid: true}
	}

	rows, err := r.db.QueryContext(ctx, query, userID, kindArg)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to list categories: %w", err))
	}
	defer rows.Close()

	categories := []*category.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(fmt.Errorf("error iterating categories: %w", err))
	}
	return categories, nil
}

func (r *CategoryRepository) FindByName(ctx context.Context, userID int64, kind category.Kind, name string) (*category.Category, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE (user_id IS NULL OR user_id = $1) AND kind = $2 AND LOWER(name) = LOWER($3)
		ORDER BY user_id NULLS FIRST
		LIMIT 1
	`

	c, err := scanCategory(r.db.QueryRowContext(ctx, query, userID, kind, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, category.ErrCategoryNotFound
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to find category: %w", err))
	}
	return c, nil
}

func (r *CategoryRepository) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1 AND user_id = $2`, id, userID)
	if isForeignKeyViolation(err) {
		return category.ErrCategoryInUse
	}
	if err != nil {
		return mapError(fmt.Errorf("failed to delete category: %w", err))
	}
	return requireAffected(result, category.ErrCategoryNotFound)
}

// EnsureSystem is idempotent thanks to the (owner, kind, lower(name)) index.
func (r *CategoryRepository) EnsureSystem(ctx context.Context, kind category.Kind, name string) error {
	query := `
		INSERT INTO categories (id, user_id, name, kind, created_at)
		VALUES ($1, NULL, $2, $3, $4)
		ON CONFLICT DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, uuid.New(), name, kind, time.Now().UTC()); err != nil {
		return mapError(fmt.Errorf("failed to seed category %q: %w", name, err))
	}
	return nil
}

func nullInt64Ptr(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
