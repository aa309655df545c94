package errx

import (
	"database/sql"
	"errors"
	"net/http"
)

// WrapStore maps relational store errors to AppError with appropriate status codes.
func WrapStore(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return New(err, http.StatusNotFound, StoreNotFoundMessage)
	}

	return New(err, http.StatusInternalServerError, StoreErrorMessage)
}
