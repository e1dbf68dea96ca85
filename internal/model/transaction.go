package model

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is the immutable audit record of one successful redemption.
// Rows are never updated or deleted.
type Transaction struct {
	ID        uuid.UUID `db:"id" json:"id"`
	CouponID  uuid.UUID `db:"coupon_id" json:"coupon_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	AccountID string    `db:"account_id" json:"account_id"`
	LikesSent int       `db:"likes_sent" json:"likes_sent"`
	Region    string    `db:"region" json:"region"`
	IPAddress *string   `db:"ip_address" json:"ip_address,omitempty"`
	Location  *string   `db:"location" json:"location,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
