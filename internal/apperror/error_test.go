package apperror_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/pair-arbitrage/internal/apperror"
)

func TestNew_UsesDefaultMessage(t *testing.T) {
	err := apperror.New(apperror.CodeRatioMismatch, apperror.WithContext("pool a"))

	assert.Equal(t, apperror.CodeRatioMismatch, err.Code)
	assert.Equal(t, "Deposit ratio does not match pool reserves", err.Message)
	assert.Contains(t, err.Error(), "RATIO_MISMATCH")
	assert.Contains(t, err.Error(), "pool a")
}

func TestIs_MatchesByCode(t *testing.T) {
	err := apperror.New(apperror.CodeZeroInput, apperror.WithContext("swap"))
	wrapped := fmt.Errorf("leg 1: %w", err)

	assert.True(t, errors.Is(wrapped, apperror.ErrZeroInput))
	assert.False(t, errors.Is(wrapped, apperror.ErrInsufficientLiquidity))
	assert.Equal(t, apperror.CodeZeroInput, apperror.GetCode(wrapped))
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantNil  bool
		wantCode apperror.Code
	}{
		{name: "nil_stays_nil", err: nil, wantNil: true},
		{name: "plain_error_gets_code", err: errors.New("disk full"), wantCode: apperror.CodeStorageError},
		{name: "app_error_keeps_code", err: apperror.New(apperror.CodeDivisionByZero), wantCode: apperror.CodeDivisionByZero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := apperror.Wrap(tt.err, apperror.CodeStorageError, "history")
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, "history", got.Context)
		})
	}
}

func TestCauseIsUnwrapped(t *testing.T) {
	cause := apperror.New(apperror.CodeInsufficientFunds)
	err := apperror.New(apperror.CodeExecutionAborted, apperror.WithCause(cause))

	assert.True(t, errors.Is(err, apperror.ErrExecutionAborted))
	assert.True(t, errors.Is(err, apperror.ErrInsufficientFunds))
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientFunds))
	assert.Equal(t, apperror.CodeExecutionAborted, apperror.GetCode(err))
}

func TestToLog(t *testing.T) {
	err := apperror.New(apperror.CodeArithmeticOverflow, apperror.WithContext("mul")).WithTraceID("abc")
	kv := err.ToLog()

	require.GreaterOrEqual(t, len(kv), 8)
	assert.Equal(t, "error_code", kv[0])
	assert.Equal(t, "ARITHMETIC_OVERFLOW", kv[1])
	assert.Contains(t, kv, "trace_id")
}

func TestGetCode_UnknownForPlainErrors(t *testing.T) {
	assert.Equal(t, apperror.CodeUnknownError, apperror.GetCode(errors.New("boom")))
}
