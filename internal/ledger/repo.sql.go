package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocktrail/stocktrail/internal/platform/db"
	"github.com/stocktrail/stocktrail/internal/shared"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction with
// bounded retry on write conflicts.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// NewTxRepository binds ledger operations to an externally managed
// transaction. The transfer workflow uses it to share one transaction across
// both legs of a completion.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *Repository) GetStockLevel(ctx context.Context, productID, locationID int64) (StockLevel, error) {
	if r == nil {
		return StockLevel{}, errors.New("ledger repository not initialised")
	}
	var level StockLevel
	err := r.pool.QueryRow(ctx, `SELECT product_id, location_id, quantity, updated_at FROM stock_levels WHERE product_id=$1 AND location_id=$2`, productID, locationID).
		Scan(&level.ProductID, &level.LocationID, &level.Quantity, &level.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockLevel{ProductID: productID, LocationID: locationID}, ErrLevelNotFound
		}
		return StockLevel{}, err
	}
	return level, nil
}

func (r *Repository) ListStockLevels(ctx context.Context, filter LevelFilter) ([]StockLevel, error) {
	if r == nil {
		return nil, errors.New("ledger repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT sl.product_id, sl.location_id, sl.quantity, sl.updated_at
FROM stock_levels sl`
	if filter.BelowMinimum {
		query += ` JOIN products p ON p.id = sl.product_id AND sl.quantity < p.minimum_stock`
	}
	query += ` WHERE ($1::bigint = 0 OR sl.product_id = $1) AND ($2::bigint = 0 OR sl.location_id = $2)
ORDER BY sl.updated_at DESC
LIMIT $3`
	rows, err := r.pool.Query(ctx, query, filter.ProductID, filter.LocationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	levels := []StockLevel{}
	for rows.Next() {
		var level StockLevel
		if err := rows.Scan(&level.ProductID, &level.LocationID, &level.Quantity, &level.UpdatedAt); err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return levels, nil
}

// Nullable time bounds carry explicit casts so the prepared statement types
// the parameters; untyped NULLs resolve to text and break the comparison.
const listAdjustmentsQuery = `SELECT id, product_id, location_id, quantity_delta, adjustment_type, reason, actor_id, COALESCE(transfer_id, 0), created_at
FROM stock_adjustments
WHERE product_id=$1 AND location_id=$2
  AND ($3::timestamptz IS NULL OR created_at >= $3)
  AND ($4::timestamptz IS NULL OR created_at <= $4)
ORDER BY created_at ASC, id ASC
LIMIT $5`

func (r *Repository) ListAdjustments(ctx context.Context, filter ListFilter) ([]Adjustment, error) {
	if r == nil {
		return nil, errors.New("ledger repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, listAdjustmentsQuery, filter.ProductID, filter.LocationID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	adjustments := []Adjustment{}
	for rows.Next() {
		var adj Adjustment
		var adjType string
		if err := rows.Scan(&adj.ID, &adj.ProductID, &adj.LocationID, &adj.QuantityDelta, &adjType, &adj.Reason, &adj.ActorID, &adj.TransferID, &adj.CreatedAt); err != nil {
			return nil, err
		}
		adj.Type = AdjustmentType(adjType)
		adjustments = append(adjustments, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return adjustments, nil
}

func (r *Repository) ListKeys(ctx context.Context) ([]Key, error) {
	if r == nil {
		return nil, errors.New("ledger repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT product_id, location_id FROM stock_levels ORDER BY location_id ASC, product_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	keys := []Key{}
	for rows.Next() {
		var key Key
		if err := rows.Scan(&key.ProductID, &key.LocationID); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *txRepository) GetLevelForUpdate(ctx context.Context, productID, locationID int64) (StockLevel, error) {
	var level StockLevel
	err := r.tx.QueryRow(ctx, `SELECT product_id, location_id, quantity, updated_at FROM stock_levels WHERE product_id=$1 AND location_id=$2 FOR UPDATE`, productID, locationID).
		Scan(&level.ProductID, &level.LocationID, &level.Quantity, &level.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockLevel{ProductID: productID, LocationID: locationID}, ErrLevelNotFound
		}
		return StockLevel{}, err
	}
	return level, nil
}

func (r *txRepository) UpsertLevel(ctx context.Context, level StockLevel) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_levels (product_id, location_id, quantity, updated_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (product_id, location_id) DO UPDATE SET quantity=EXCLUDED.quantity, updated_at=NOW()`, level.ProductID, level.LocationID, level.Quantity)
	return err
}

func (r *txRepository) InsertAdjustment(ctx context.Context, adj Adjustment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_adjustments (product_id, location_id, quantity_delta, adjustment_type, reason, actor_id, transfer_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id`,
		adj.ProductID, adj.LocationID, adj.QuantityDelta, string(adj.Type), adj.Reason, adj.ActorID, nullInt(adj.TransferID)).Scan(&id)
	return id, err
}

func (r *txRepository) SumDeltas(ctx context.Context, productID, locationID int64) (int64, error) {
	var sum int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(quantity_delta), 0) FROM stock_adjustments WHERE product_id=$1 AND location_id=$2`, productID, locationID).Scan(&sum)
	return sum, err
}

func (r *txRepository) KeyHeld(ctx context.Context, productID, locationID int64) (bool, error) {
	var held bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_holds WHERE product_id=$1 AND location_id=$2)`, productID, locationID).Scan(&held)
	return held, err
}

func (r *txRepository) InsertHold(ctx context.Context, productID, locationID, stored, recomputed int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO ledger_holds (product_id, location_id, stored_quantity, recomputed_quantity, created_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (product_id, location_id) DO NOTHING`, productID, locationID, stored, recomputed)
	return err
}

func (r *txRepository) InsertAuditEntry(ctx context.Context, entry shared.AuditEntry) error {
	return shared.InsertAuditEntry(ctx, r.tx, entry)
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
