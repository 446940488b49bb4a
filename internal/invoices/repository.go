package invoices

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/platform/db"
	"github.com/invoicedesk/invoicedesk/internal/platform/httpx"
)

// Repository persists invoices. Business scoped methods never return rows of
// another business.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, businessID, id uuid.UUID) (*Invoice, error)
	List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error)
	ListAll(ctx context.Context, businessID uuid.UUID) ([]Invoice, error)
	ListPastDue(ctx context.Context, asOf time.Time) ([]Invoice, error)
	Create(ctx context.Context, inv Invoice) error
	Update(ctx context.Context, inv Invoice) error
	UpdateStatus(ctx context.Context, businessID, id uuid.UUID, status billing.Status) error
	Delete(ctx context.Context, businessID, id uuid.UUID) error
}

const selectColumns = `i.id, i.business_id, i.customer_id, c.name, i.number, i.items,
	i.tax_mode, i.tax_rate::text, i.tax_name, i.subtotal::text, i.tax_amount::text, i.total::text,
	i.status, i.due_date, i.notes, i.created_at, i.updated_at`

const fromJoin = `FROM invoices i JOIN customers c ON c.id = i.customer_id`

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

func (r *repository) Get(ctx context.Context, businessID, id uuid.UUID) (*Invoice, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` `+fromJoin+` WHERE i.id = $1 AND i.business_id = $2`, id, businessID)
	inv, err := scanInvoice(row)
	if err != nil {
		return nil, db.MapError(err)
	}
	return &inv, nil
}

func (r *repository) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	conditions = append(conditions, fmt.Sprintf("i.business_id = $%d", argPos))
	args = append(args, req.BusinessID)
	argPos++

	if req.Status != "" {
		conditions = append(conditions, fmt.Sprintf("i.status = $%d", argPos))
		args = append(args, string(req.Status))
		argPos++
	}

	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(i.number ILIKE $%d OR c.name ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+req.Search+"%")
		argPos++
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) "+fromJoin+" "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s %s %s ORDER BY i.created_at DESC LIMIT $%d OFFSET $%d`,
		selectColumns, fromJoin, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	list, err := r.query(ctx, query, args...)
	return list, total, err
}

func (r *repository) ListAll(ctx context.Context, businessID uuid.UUID) ([]Invoice, error) {
	return r.query(ctx, `SELECT `+selectColumns+` `+fromJoin+` WHERE i.business_id = $1 ORDER BY i.created_at DESC`, businessID)
}

func (r *repository) ListPastDue(ctx context.Context, asOf time.Time) ([]Invoice, error) {
	return r.query(ctx, `SELECT `+selectColumns+` `+fromJoin+`
		WHERE i.status = $1 AND i.due_date < $2 ORDER BY i.business_id, i.due_date`,
		string(billing.StatusSent), NewDate(asOf).Time)
}

func (r *repository) Create(ctx context.Context, inv Invoice) error {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO invoices
		(id, business_id, customer_id, number, items, tax_mode, tax_rate, tax_name,
		 subtotal, tax_amount, total, status, due_date, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9::numeric, $10::numeric, $11::numeric, $12, $13, $14, $15, $16)`,
		inv.ID, inv.BusinessID, inv.CustomerID, inv.Number, items,
		string(inv.Tax.Mode), inv.Tax.Rate.String(), inv.Tax.Name,
		inv.Totals.Subtotal.String(), inv.Totals.TaxAmount.String(), inv.Totals.Total.String(),
		string(inv.Status), inv.DueDate.Time, inv.Notes, inv.CreatedAt, inv.UpdatedAt)
	return db.MapError(err)
}

// Update overwrites every mutable column; concurrent writers resolve as last
// write wins.
func (r *repository) Update(ctx context.Context, inv Invoice) error {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `UPDATE invoices SET
		customer_id = $3, number = $4, items = $5, tax_mode = $6, tax_rate = $7::numeric, tax_name = $8,
		subtotal = $9::numeric, tax_amount = $10::numeric, total = $11::numeric,
		status = $12, due_date = $13, notes = $14, updated_at = NOW()
		WHERE id = $1 AND business_id = $2`,
		inv.ID, inv.BusinessID, inv.CustomerID, inv.Number, items,
		string(inv.Tax.Mode), inv.Tax.Rate.String(), inv.Tax.Name,
		inv.Totals.Subtotal.String(), inv.Totals.TaxAmount.String(), inv.Totals.Total.String(),
		string(inv.Status), inv.DueDate.Time, inv.Notes)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, businessID, id uuid.UUID, status billing.Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE invoices SET status = $3, updated_at = NOW() WHERE id = $1 AND business_id = $2`,
		id, businessID, string(status))
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, businessID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM invoices WHERE id = $1 AND business_id = $2`, id, businessID)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) query(ctx context.Context, sql string, args ...interface{}) ([]Invoice, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var (
		inv                                 Invoice
		items                               []byte
		taxMode, status                     string
		taxRate, subtotal, taxAmount, total string
		dueDate                             time.Time
	)
	err := row.Scan(&inv.ID, &inv.BusinessID, &inv.CustomerID, &inv.CustomerName, &inv.Number, &items,
		&taxMode, &taxRate, &inv.Tax.Name, &subtotal, &taxAmount, &total,
		&status, &dueDate, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return Invoice{}, err
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return Invoice{}, fmt.Errorf("decode items of invoice %s: %w", inv.ID, err)
	}
	inv.Tax.Mode = billing.ParseTaxMode(taxMode)
	inv.Status = billing.Status(status)
	inv.DueDate = NewDate(dueDate)
	if inv.Tax.Rate, err = decimal.NewFromString(taxRate); err != nil {
		return Invoice{}, err
	}
	if inv.Totals.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return Invoice{}, err
	}
	if inv.Totals.TaxAmount, err = decimal.NewFromString(taxAmount); err != nil {
		return Invoice{}, err
	}
	if inv.Totals.Total, err = decimal.NewFromString(total); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}
