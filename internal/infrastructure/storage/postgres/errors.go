package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"stockline/internal/core/apperror"
)

// ErrorClass groups PostgreSQL failures by how the caller should react.
type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	// ErrorClassRetryable is a serialization failure or deadlock: the whole
	// transaction may be replayed.
	ErrorClassRetryable
	// ErrorClassTransient is a lock or statement timeout or a lost
	// connection: surfaced to the client as retryable.
	ErrorClassTransient
)

// SQLSTATE codes handled specially.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
)

// ClassifyError inspects err for a PostgreSQL error code.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeSerializationFailure, pgErr.Code == codeDeadlockDetected:
			return ErrorClassRetryable
		case pgErr.Code == codeLockNotAvailable, pgErr.Code == codeQueryCanceled:
			return ErrorClassTransient
		case strings.HasPrefix(pgErr.Code, "08"):
			return ErrorClassTransient
		}
		return ErrorClassPermanent
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return ErrorClassTransient
	}
	return ErrorClassPermanent
}

// IsRetryable reports whether the transaction can be replayed.
func IsRetryable(err error) bool {
	return ClassifyError(err) == ErrorClassRetryable
}

// TranslateError maps driver errors onto AppErrors. Errors that are already
// AppErrors, and unknown errors, pass through.
func TranslateError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if ClassifyError(err) != ErrorClassPermanent {
		return apperror.NewTransient(err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return apperror.NewDuplicate(entity, pgErr.ConstraintName, "").WithCause(err)
		case codeForeignKeyViolation:
			return apperror.NewValidation("referenced record does not exist").
				WithField(pgErr.ColumnName).
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case codeCheckViolation:
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "constraint violated: "+pgErr.ConstraintName).
				WithCause(err)
		}
	}
	return err
}

// NotFound converts pgx.ErrNoRows into a NotFound AppError.
func NotFound(err error, entity string, id any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NewNotFound(entity, id)
	}
	return TranslateError(err, entity)
}
