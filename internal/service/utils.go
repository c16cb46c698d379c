package service

import (
	"errors"
	"fmt"

	"github.com/ayo6706/clubledger/internal/models"
	"github.com/jackc/pgx/v5"
)

func requireExactlyOne(rows int64, operation string) error {
	if rows != 1 {
		return fmt.Errorf("%s affected %d rows", operation, rows)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func ptr[T any](v T) *T {
	return &v
}

func accountMissing(err error) bool {
	return errors.Is(err, models.ErrMemberNotFound) || errors.Is(err, models.ErrOrganisationNotFound)
}
