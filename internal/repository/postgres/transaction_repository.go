package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"likes-hub/internal/model"
	"likes-hub/internal/repository"
)

type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

var _ repository.TransactionRepository = (*TransactionRepository)(nil)

func (r *TransactionRepository) Create(ctx context.Context, tx pgx.Tx, txn *model.Transaction) error {
	query := `
		INSERT INTO transactions (id, coupon_id, user_id, account_id, likes_sent, region, ip_address, location, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		txn.ID,
		txn.CouponID,
		txn.UserID,
		txn.AccountID,
		txn.LikesSent,
		txn.Region,
		txn.IPAddress,
		txn.Location,
		txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) CountByCoupon(ctx context.Context, couponID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE coupon_id = $1`, couponID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return count, nil
}
