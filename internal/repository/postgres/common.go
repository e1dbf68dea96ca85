package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"likes-hub/internal/repository"
)

var (
	ErrNotFound      = repository.ErrNotFound
	ErrDuplicateCode = repository.ErrDuplicateCode
)

type scanTarget interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
