// Package product provides the catalog repository, its PostgreSQL
// implementation and a Redis read-through cache.
package product

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("product not found")
)

type Query struct {
	Q      string
	Limit  int
	Offset int
}

func (q Query) normalized() Query {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	q.Q = strings.TrimSpace(q.Q)
	return q
}

type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, q Query) ([]Product, error)
	Update(ctx context.Context, id string, patch Patch) (*Product, error)
	SoftDelete(ctx context.Context, id string) (bool, error)
	Restore(ctx context.Context, id string) (bool, error)
	ListTrash(ctx context.Context, q Query) ([]Product, error)
	PermanentDelete(ctx context.Context, id string) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const productColumns = `id, name, description, price::text, stock, is_active, is_deleted, deleted_at, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock,
		&p.IsActive, &p.IsDeleted, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PGRepo) Create(ctx context.Context, p *Product) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.db.QueryRow(ctx, `
		INSERT INTO products (id, name, description, price, stock, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,TRUE,NOW(),NOW())
		RETURNING is_active, created_at, updated_at
	`, p.ID, p.Name, p.Description, p.Price, p.Stock).Scan(&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
}

// GetByID returns a product that is not in the trash.
func (r *PGRepo) GetByID(ctx context.Context, id string) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p, err := scanProduct(r.db.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products WHERE id=$1 AND NOT is_deleted
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// List returns active products, newest first.
func (r *PGRepo) List(ctx context.Context, q Query) ([]Product, error) {
	q = q.normalized()
	return r.query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_active AND NOT is_deleted
		  AND ($1 = '' OR name ILIKE '%'||$1||'%' OR description ILIKE '%'||$1||'%')
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, q.Q, q.Limit, q.Offset)
}

func (r *PGRepo) ListTrash(ctx context.Context, q Query) ([]Product, error) {
	q = q.normalized()
	return r.query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_deleted
		  AND ($1 = '' OR name ILIKE '%'||$1||'%')
		ORDER BY deleted_at DESC
		LIMIT $2 OFFSET $3
	`, q.Q, q.Limit, q.Offset)
}

func (r *PGRepo) query(ctx context.Context, sql string, args ...any) ([]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PGRepo) Update(ctx context.Context, id string, patch Patch) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var price *string
	if patch.Price != nil {
		s := patch.Price.StringFixed(2)
		price = &s
	}
	p, err := scanProduct(r.db.QueryRow(ctx, `
		UPDATE products
		SET name        = COALESCE($2, name),
		    description = COALESCE($3, description),
		    price       = COALESCE($4::text::numeric, price),
		    stock       = COALESCE($5, stock),
		    is_active   = COALESCE($6, is_active),
		    updated_at  = NOW()
		WHERE id = $1 AND NOT is_deleted
		RETURNING `+productColumns,
		id, patch.Name, patch.Description, price, patch.Stock, patch.IsActive))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *PGRepo) SoftDelete(ctx context.Context, id string) (bool, error) {
	return r.exec(ctx, `
		UPDATE products SET is_deleted = TRUE, deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted
	`, id)
}

func (r *PGRepo) Restore(ctx context.Context, id string) (bool, error) {
	return r.exec(ctx, `
		UPDATE products SET is_deleted = FALSE, deleted_at = NULL, updated_at = NOW()
		WHERE id = $1 AND is_deleted
	`, id)
}

// PermanentDelete only removes products already in the trash. Order items
// keep their price snapshot; their product reference becomes NULL.
func (r *PGRepo) PermanentDelete(ctx context.Context, id string) (bool, error) {
	return r.exec(ctx, `DELETE FROM products WHERE id = $1 AND is_deleted`, id)
}

func (r *PGRepo) exec(ctx context.Context, sql string, args ...any) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

var _ Repository = (*PGRepo)(nil)
