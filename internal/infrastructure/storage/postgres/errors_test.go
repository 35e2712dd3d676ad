package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"stockline/internal/core/apperror"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		code string
		want ErrorClass
	}{
		{codeSerializationFailure, ErrorClassRetryable},
		{codeDeadlockDetected, ErrorClassRetryable},
		{codeLockNotAvailable, ErrorClassTransient},
		{codeQueryCanceled, ErrorClassTransient},
		{"08006", ErrorClassTransient},
		{codeUniqueViolation, ErrorClassPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: tt.code})
			assert.Equal(t, tt.want, ClassifyError(err))
		})
	}
	assert.Equal(t, ErrorClassPermanent, ClassifyError(errors.New("plain")))
	assert.Equal(t, ErrorClassPermanent, ClassifyError(nil))
}

func TestTranslateError(t *testing.T) {
	lock := &pgconn.PgError{Code: codeLockNotAvailable}
	assert.True(t, apperror.IsTransient(TranslateError(lock, "stock")))

	dup := &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "sales_number_key"}
	assert.True(t, apperror.HasCode(TranslateError(dup, "sale"), apperror.CodeDuplicate))

	app := apperror.NewValidation("x")
	assert.Same(t, app, TranslateError(app, "sale"))

	assert.ErrorIs(t, TranslateError(context.Canceled, "sale"), context.Canceled)
	assert.True(t, apperror.IsNotFound(NotFound(pgx.ErrNoRows, "sale", "1")))
}
