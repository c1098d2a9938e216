package transfer

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocktrail/stocktrail/internal/ledger"
	"github.com/stocktrail/stocktrail/internal/platform/db"
	"github.com/stocktrail/stocktrail/internal/shared"
)

// Repository persists transfers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx     pgx.Tx
	ledger ledger.TxRepository
}

// WithTx executes the callback inside a repeatable-read transaction with
// bounded retry on write conflicts.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("transfer repository not initialised")
	}
	return db.WithRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, ledger: ledger.NewTxRepository(tx)})
	})
}

const transferColumns = `id, product_id, from_location_id, to_location_id, quantity, status, reason, requested_by, COALESCE(approved_by, 0), created_at, updated_at`

func scanTransfer(row pgx.Row) (Transfer, error) {
	var t Transfer
	var status string
	err := row.Scan(&t.ID, &t.ProductID, &t.FromLocationID, &t.ToLocationID, &t.Quantity, &status, &t.Reason, &t.RequestedBy, &t.ApprovedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, ErrNotFound
		}
		return Transfer{}, err
	}
	t.Status = Status(status)
	return t, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Transfer, error) {
	if r == nil {
		return Transfer{}, errors.New("transfer repository not initialised")
	}
	return scanTransfer(r.pool.QueryRow(ctx, `SELECT `+transferColumns+` FROM stock_transfers WHERE id=$1`, id))
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Transfer, error) {
	if r == nil {
		return nil, errors.New("transfer repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+transferColumns+` FROM stock_transfers
WHERE ($1::bigint = 0 OR product_id = $1)
  AND ($2::bigint = 0 OR from_location_id = $2 OR to_location_id = $2)
  AND ($3::text = '' OR status = $3)
ORDER BY created_at DESC
LIMIT $4`, filter.ProductID, filter.LocationID, string(filter.Status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	transfers := []Transfer{}
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transfers, nil
}

func (r *txRepository) Insert(ctx context.Context, t Transfer) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_transfers (product_id, from_location_id, to_location_id, quantity, status, reason, requested_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW()) RETURNING id`,
		t.ProductID, t.FromLocationID, t.ToLocationID, t.Quantity, string(t.Status), t.Reason, t.RequestedBy).Scan(&id)
	return id, err
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Transfer, error) {
	return scanTransfer(r.tx.QueryRow(ctx, `SELECT `+transferColumns+` FROM stock_transfers WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE stock_transfers SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	return err
}

func (r *txRepository) SetApprover(ctx context.Context, id int64, actorID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE stock_transfers SET approved_by=$2, updated_at=NOW() WHERE id=$1`, id, actorID)
	return err
}

func (r *txRepository) ApplyAdjustment(ctx context.Context, input ledger.ApplyInput) (ledger.ApplyResult, error) {
	return ledger.ApplyInTx(ctx, r.ledger, input)
}

func (r *txRepository) InsertAuditEntry(ctx context.Context, entry shared.AuditEntry) error {
	return shared.InsertAuditEntry(ctx, r.tx, entry)
}
