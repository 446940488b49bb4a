package businesses

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/invoicedesk/invoicedesk/internal/platform/db"
	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
)

// Repository persists businesses.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Business, error)
	Get(ctx context.Context, id uuid.UUID) (*Business, error)
	Create(ctx context.Context, business Business) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// updatable lists the columns Update accepts, in statement order.
var updatable = []string{"name", "email", "phone", "address", "website", "logo", "tax_id"}

const selectColumns = `id, owner_id, name, email, phone, address, website, logo, tax_id, created_at, updated_at`

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Business, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+selectColumns+` FROM businesses WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*Business, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM businesses WHERE id = $1`, id)
	b, err := scanBusiness(row)
	if err != nil {
		return nil, db.MapError(err)
	}
	return &b, nil
}

func (r *repository) Create(ctx context.Context, business Business) error {
	return Insert(ctx, r.db, business)
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	query := "UPDATE businesses SET updated_at = NOW()"
	var args []interface{}
	argPos := 1
	for _, col := range updatable {
		if v, ok := updates[col]; ok {
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, v)
			argPos++
		}
	}
	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM businesses WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// Insert writes a business using q, which may be a pool or an open transaction.
func Insert(ctx context.Context, q db.DBTX, b Business) error {
	_, err := q.Exec(ctx, `INSERT INTO businesses
		(id, owner_id, name, email, phone, address, website, logo, tax_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		b.ID, b.OwnerID, b.Name, b.Email, b.Phone, b.Address, b.Website, b.Logo, b.TaxID, b.CreatedAt, b.UpdatedAt)
	return db.MapError(err)
}

func scanBusiness(row pgx.Row) (Business, error) {
	var b Business
	err := row.Scan(&b.ID, &b.OwnerID, &b.Name, &b.Email, &b.Phone, &b.Address,
		&b.Website, &b.Logo, &b.TaxID, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}
