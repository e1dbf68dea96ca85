package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"likes-hub/internal/model"
	"likes-hub/internal/repository"
)

const couponColumns = `id, code, likes_count, status, created_by, created_at, expires_at, used_at, used_by`

type CouponRepository struct {
	pool *pgxpool.Pool
}

func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

var _ repository.CouponRepository = (*CouponRepository)(nil)

func scanCoupon(src scanTarget) (*model.Coupon, error) {
	var c model.Coupon
	err := src.Scan(
		&c.ID,
		&c.Code,
		&c.LikesCount,
		&c.Status,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.ExpiresAt,
		&c.UsedAt,
		&c.UsedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan coupon: %w", err)
	}
	return &c, nil
}

func (r *CouponRepository) Create(ctx context.Context, coupon *model.Coupon) error {
	query := `
		INSERT INTO coupons (id, code, likes_count, status, created_by, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		coupon.ID,
		coupon.Code,
		coupon.LikesCount,
		coupon.Status,
		coupon.CreatedBy,
		coupon.CreatedAt,
		coupon.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	query := fmt.Sprintf(`SELECT %s FROM coupons WHERE code = $1`, couponColumns)
	return scanCoupon(r.pool.QueryRow(ctx, query, code))
}

func (r *CouponRepository) FindActiveByCode(ctx context.Context, code string, now time.Time) (*model.Coupon, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM coupons
		WHERE code = $1
		  AND status = $2
		  AND (expires_at IS NULL OR expires_at > $3)`, couponColumns)

	return scanCoupon(r.pool.QueryRow(ctx, query, code, model.CouponStatusActive, now))
}

// MarkUsed claims the coupon with a single conditional update. The WHERE
// clause rechecks status and expiry under the transaction, so two concurrent
// redemptions of the same code cannot both see a row come back.
func (r *CouponRepository) MarkUsed(ctx context.Context, tx pgx.Tx, code, usedBy string, now time.Time) (*model.Coupon, error) {
	query := fmt.Sprintf(`
		UPDATE coupons
		SET status = $1, used_at = $2, used_by = $3
		WHERE code = $4
		  AND status = $5
		  AND (expires_at IS NULL OR expires_at > $2)
		RETURNING %s`, couponColumns)

	return scanCoupon(tx.QueryRow(ctx, query,
		model.CouponStatusUsed,
		now,
		usedBy,
		code,
		model.CouponStatusActive,
	))
}

func (r *CouponRepository) ListWithUsage(ctx context.Context) ([]*model.CouponSummary, error) {
	query := `
		SELECT c.id, c.code, c.likes_count, c.status, c.created_by, c.created_at,
		       c.expires_at, c.used_at, c.used_by,
		       COUNT(t.id) AS used_times,
		       COALESCE(STRING_AGG(t.account_id, ','), '') AS used_accounts
		FROM coupons c
		LEFT JOIN transactions t ON c.id = t.coupon_id
		GROUP BY c.id
		ORDER BY c.created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	var summaries []*model.CouponSummary
	for rows.Next() {
		var s model.CouponSummary
		err := rows.Scan(
			&s.ID,
			&s.Code,
			&s.LikesCount,
			&s.Status,
			&s.CreatedBy,
			&s.CreatedAt,
			&s.ExpiresAt,
			&s.UsedAt,
			&s.UsedBy,
			&s.UsedTimes,
			&s.UsedAccounts,
		)
		if err != nil {
			return nil, fmt.Errorf("scan coupon summary: %w", err)
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coupons: %w", err)
	}
	return summaries, nil
}
