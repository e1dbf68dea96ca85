package model

import (
	"time"

	"github.com/google/uuid"
)

type AdminRole string

const (
	AdminRoleAdmin AdminRole = "admin"
)

type AdminUser struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         AdminRole `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
