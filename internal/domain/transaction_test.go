package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSOLAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		lamports uint64
		wantErr  bool
	}{
		{name: "whole", input: "2", lamports: 2_000_000_000},
		{name: "fraction", input: "0.5", lamports: 500_000_000},
		{name: "one lamport", input: "0.000000001", lamports: 1},
		{name: "padded", input: " 1.25 ", lamports: 1_250_000_000},
		{name: "zero", input: "0", wantErr: true},
		{name: "negative", input: "-1", wantErr: true},
		{name: "not a number", input: "abc", wantErr: true},
		{name: "too precise", input: "0.0000000001", wantErr: true},
		{name: "overflow", input: "99999999999999999999", wantErr: true},
		{name: "scientific", input: "1.5e-3", lamports: 1_500_000},
		{name: "largest exponent", input: "1e10", lamports: 10_000_000_000_000_000_000},
		{name: "exponent overflow", input: "1e11", wantErr: true},
		{name: "tiny exponent", input: "1e-50", wantErr: true},
		{name: "too many digits", input: "0.00000000100000000000000000000000000000000000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, lamports, err := ParseSOLAmount(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.lamports, lamports)
		})
	}
}

func TestParseSOLAmountRejectsHugeExponentsQuickly(t *testing.T) {
	for _, input := range []string{"1e100000000", "1e-100000000", "9e9223372036854775807"} {
		start := time.Now()
		_, _, err := ParseSOLAmount(input)
		require.Error(t, err, input)
		assert.True(t, errors.Is(err, ErrInvalidInput))
		assert.Less(t, time.Since(start), 100*time.Millisecond, input)
	}

	_, _, err := ParseSOLAmount("1" + strings.Repeat("0", 100))
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestLamportsToSOL(t *testing.T) {
	assert.True(t, LamportsToSOL(1_500_000_000).Equal(decimal.RequireFromString("1.5")))
	assert.True(t, LamportsToSOL(EstimatedFeeLamports).Equal(decimal.RequireFromString("0.000005")))
}

func TestErrorClass(t *testing.T) {
	assert.Equal(t, "insufficient_funds", ErrorClass(&InsufficientFundsError{}))
	assert.Equal(t, "submission", ErrorClass(&SubmissionError{Detail: "boom"}))
	assert.Equal(t, "malformed_transaction", ErrorClass(NewMalformedTransaction("bad")))
	assert.Equal(t, "expired_block_reference", ErrorClass(ErrExpiredBlockReference))
	assert.Equal(t, "", ErrorClass(nil))
	assert.True(t, errors.Is(&SubmissionError{}, ErrSubmission))
}
