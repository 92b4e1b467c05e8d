package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/benx421/payment-reconciler/internal/db"
	"github.com/benx421/payment-reconciler/internal/models"
)

// Schema for the postgres ledger. Orders are never deleted; conflicting
// terminal observations land in outcome_conflicts as the audit trail.
const schema = `
CREATE TABLE IF NOT EXISTS orders (
	merchant_transaction_id TEXT PRIMARY KEY,
	customer_name           TEXT NOT NULL DEFAULT '',
	customer_email          TEXT NOT NULL DEFAULT '',
	customer_phone          TEXT NOT NULL DEFAULT '',
	amount_minor_units      BIGINT NOT NULL,
	status                  TEXT NOT NULL,
	gateway_transaction_id  TEXT NOT NULL DEFAULT '',
	last_outcome_code       TEXT NOT NULL DEFAULT '',
	created_at              TIMESTAMPTZ NOT NULL,
	updated_at              TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS outcome_conflicts (
	id                      BIGSERIAL PRIMARY KEY,
	merchant_transaction_id TEXT NOT NULL,
	existing_status         TEXT NOT NULL,
	attempted_status        TEXT NOT NULL,
	code                    TEXT NOT NULL,
	source                  TEXT NOT NULL,
	observed_at             TIMESTAMPTZ NOT NULL
);
`

const uniqueViolation = "23505"

// Postgres is a Ledger backed by PostgreSQL. Per-transaction-id mutual
// exclusion comes from SELECT ... FOR UPDATE row locks, so concurrent
// outcome applications for the same order serialize while other orders
// proceed.
type Postgres struct {
	db     *db.DB
	logger *slog.Logger
}

var _ Ledger = (*Postgres)(nil)

// NewPostgres creates a postgres-backed ledger
func NewPostgres(database *db.DB, logger *slog.Logger) *Postgres {
	return &Postgres{db: database, logger: logger}
}

// EnsureSchema creates the ledger tables if they do not exist
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create ledger schema: %w", err)
	}
	return nil
}

// Create inserts a new PENDING order
func (p *Postgres) Create(ctx context.Context, req *models.PaymentRequest, result *models.GatewayResult) (*models.Order, error) {
	now := time.Now()
	order := &models.Order{
		MerchantTransactionID: req.MerchantTransactionID,
		CustomerName:          req.CustomerName,
		CustomerEmail:         req.CustomerEmail,
		CustomerPhone:         req.CustomerPhone,
		AmountMinorUnits:      req.AmountMinorUnits,
		Status:                models.OrderStatusPending,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if result != nil {
		order.LastOutcomeCode = result.Code
		order.GatewayTransactionID = result.GatewayTransactionID
	}

	query := `
		INSERT INTO orders (
			merchant_transaction_id, customer_name, customer_email, customer_phone,
			amount_minor_units, status, gateway_transaction_id, last_outcome_code,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := p.db.ExecContext(ctx, query,
		order.MerchantTransactionID,
		order.CustomerName,
		order.CustomerEmail,
		order.CustomerPhone,
		order.AmountMinorUnits,
		order.Status,
		order.GatewayTransactionID,
		order.LastOutcomeCode,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, models.ErrDuplicateTransaction
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	return order, nil
}

// ApplyOutcome applies an outcome inside a transaction holding a row lock
// on the order.
func (p *Postgres) ApplyOutcome(ctx context.Context, outcome models.PaymentOutcome) (*models.Order, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback error is not critical in defer
	}()

	order, err := scanOrder(tx.QueryRowContext(ctx,
		selectOrderQuery+" WHERE merchant_transaction_id = $1 FOR UPDATE",
		outcome.MerchantTransactionID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	incoming := outcome.Status()
	var conflict bool

	switch decide(order.Status, incoming) {
	case transitionApply:
		order.Status = incoming
		order.LastOutcomeCode = outcome.Code
		if outcome.GatewayTransactionID != "" {
			order.GatewayTransactionID = outcome.GatewayTransactionID
		}
		order.UpdatedAt = outcome.ObservedAt
		if err := updateOrder(ctx, tx, order); err != nil {
			return nil, err
		}

	case transitionRefresh:
		order.LastOutcomeCode = outcome.Code
		order.UpdatedAt = outcome.ObservedAt
		if err := updateOrder(ctx, tx, order); err != nil {
			return nil, err
		}

	case transitionConflict:
		conflict = true
		_, err := tx.ExecContext(ctx, `
			INSERT INTO outcome_conflicts (
				merchant_transaction_id, existing_status, attempted_status,
				code, source, observed_at
			) VALUES ($1, $2, $3, $4, $5, $6)`,
			outcome.MerchantTransactionID,
			order.Status,
			incoming,
			outcome.Code,
			outcome.Source,
			outcome.ObservedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to record outcome conflict: %w", err)
		}

	case transitionNoop:
		// duplicate delivery tolerance
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if conflict {
		p.logger.Warn("conflicting terminal outcome rejected",
			"merchant_transaction_id", outcome.MerchantTransactionID,
			"existing_status", order.Status,
			"attempted_status", incoming,
			"code", outcome.Code,
			"source", outcome.Source,
		)
		return order, models.ErrConflictingOutcome
	}

	return order, nil
}

// Get retrieves an order by merchant transaction id
func (p *Postgres) Get(ctx context.Context, merchantTransactionID string) (*models.Order, error) {
	order, err := scanOrder(p.db.QueryRowContext(ctx,
		selectOrderQuery+" WHERE merchant_transaction_id = $1",
		merchantTransactionID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return order, nil
}

// List returns all orders, oldest first
func (p *Postgres) List(ctx context.Context) ([]*models.Order, error) {
	rows, err := p.db.QueryContext(ctx, selectOrderQuery+" ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close() //nolint:errcheck // close error is not actionable

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return orders, nil
}

const selectOrderQuery = `
	SELECT merchant_transaction_id, customer_name, customer_email, customer_phone,
	       amount_minor_units, status, gateway_transaction_id, last_outcome_code,
	       created_at, updated_at
	FROM orders
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	err := row.Scan(
		&order.MerchantTransactionID,
		&order.CustomerName,
		&order.CustomerEmail,
		&order.CustomerPhone,
		&order.AmountMinorUnits,
		&order.Status,
		&order.GatewayTransactionID,
		&order.LastOutcomeCode,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func updateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    gateway_transaction_id = $3,
		    last_outcome_code = $4,
		    updated_at = $5
		WHERE merchant_transaction_id = $1`,
		order.MerchantTransactionID,
		order.Status,
		order.GatewayTransactionID,
		order.LastOutcomeCode,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}
