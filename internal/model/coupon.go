package model

import (
	"time"

	"github.com/google/uuid"
)

type CouponStatus string

const (
	CouponStatusActive CouponStatus = "active"
	CouponStatusUsed   CouponStatus = "used"
)

type Coupon struct {
	ID         uuid.UUID    `db:"id" json:"id"`
	Code       string       `db:"code" json:"code"`
	LikesCount int          `db:"likes_count" json:"likes_count"`
	Status     CouponStatus `db:"status" json:"status"`
	CreatedBy  string       `db:"created_by" json:"created_by"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	ExpiresAt  *time.Time   `db:"expires_at" json:"expires_at,omitempty"`
	UsedAt     *time.Time   `db:"used_at" json:"used_at,omitempty"`
	UsedBy     *string      `db:"used_by" json:"used_by,omitempty"`
}

// Expired reports whether the coupon's expiry has passed at the given instant.
// Expiry is derived at read time; it is never written back as a status.
func (c *Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// CouponSummary is the administrative listing view: the raw coupon row plus
// redemption usage aggregated from the transactions table.
type CouponSummary struct {
	Coupon
	UsedTimes    int    `db:"used_times" json:"used_times"`
	UsedAccounts string `db:"used_accounts" json:"used_accounts"`
}
