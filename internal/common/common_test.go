package common

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("BARCODE_TOTAL_TIMEOUT", "")

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 300, cfg.OCR.DPI)
	assert.False(t, cfg.AIEnabled())
	assert.Equal(t, "30s", cfg.Barcode.TotalTimeout.String())
}

func TestConfigValidateRejectsAttemptLongerThanTotal(t *testing.T) {
	t.Setenv("BARCODE_TOTAL_TIMEOUT", "2s")
	t.Setenv("BARCODE_CLI_TIMEOUT", "5s")

	err := LoadConfig().Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		code     string
	}{
		{"invalid", status.Error(codes.InvalidArgument, "bad image"), ErrInvalidInput, "InvalidArgument"},
		{"quota", status.Error(codes.ResourceExhausted, "quota"), ErrRateLimited, "ResourceExhausted"},
		{"auth", status.Error(codes.PermissionDenied, "no"), ErrUnauthorized, "PermissionDenied"},
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), ErrUnavailable, "DeadlineExceeded"},
		{"other", status.Error(codes.DataLoss, "?"), ErrInternal, "DataLoss"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromStatus(fmt.Errorf("call: %w", tt.err))
			assert.ErrorIs(t, err, tt.sentinel)
			var appErr *AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.code, appErr.Code)
		})
	}

	st, err := status.New(codes.ResourceExhausted, "quota").WithDetails(&errdetails.ErrorInfo{
		Reason: "RATE_LIMIT_EXCEEDED",
		Domain: "googleapis.com",
	})
	require.NoError(t, err)
	var appErr *AppError
	require.ErrorAs(t, FromStatus(st.Err()), &appErr)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", appErr.Code)

	plain := errors.New("boom")
	assert.Same(t, plain, FromStatus(plain))
	assert.NoError(t, FromStatus(nil))
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("iata", "MAD", Required, IATACode).
		Field("country", "es", CountryCode).
		Field("name", "", Required).
		Field("seat", "12AB", MaxLength(3))

	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 3)
	assert.True(t, IsValidation(v.Error()))
	assert.True(t, IsIATACode("LHR"))
	assert.False(t, IsIATACode("lhr"))
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(LogConfig{Level: "debug", Format: "json"}, &buf).Debug("logger.check", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"logger.check"`)

	buf.Reset()
	NewLogger(LogConfig{Level: "warn", Format: "text"}, &buf).Info("hidden")
	assert.Empty(t, buf.String())
}
