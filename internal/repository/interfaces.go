package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"likes-hub/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicateCode is returned when an insert collides with an existing
	// coupon code. The unique constraint on coupons.code is the final
	// race-breaker for concurrent issuance.
	ErrDuplicateCode = errors.New("duplicate coupon code")
)

type CouponRepository interface {
	Create(ctx context.Context, coupon *model.Coupon) error
	FindByCode(ctx context.Context, code string) (*model.Coupon, error)
	// FindActiveByCode returns the coupon only when it is active and not
	// expired at the given instant. Expired-but-unmarked rows report ErrNotFound.
	FindActiveByCode(ctx context.Context, code string, now time.Time) (*model.Coupon, error)
	// MarkUsed transitions active -> used with a conditional update inside the
	// caller's transaction. ErrNotFound means the coupon was absent, already
	// used, or expired; exactly one concurrent caller can win.
	MarkUsed(ctx context.Context, tx pgx.Tx, code, usedBy string, now time.Time) (*model.Coupon, error)
	ListWithUsage(ctx context.Context) ([]*model.CouponSummary, error)
}

type TransactionRepository interface {
	// Create inserts the audit row inside the caller's transaction so it
	// commits atomically with the coupon status transition.
	Create(ctx context.Context, tx pgx.Tx, txn *model.Transaction) error
	CountByCoupon(ctx context.Context, couponID uuid.UUID) (int64, error)
}

type AdminUserRepository interface {
	FindByUsername(ctx context.Context, username string) (*model.AdminUser, error)
	Create(ctx context.Context, user *model.AdminUser) error
}
