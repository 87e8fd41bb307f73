package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestIsValidAmount(t *testing.T) {
	tests := []struct {
		amount string
		valid  bool
	}{
		{"100", true},
		{"0.01", true},
		{"200.50", true},
		{"1.100", true},
		{"0", false},
		{"-1", false},
		{"0.005", false},
		{"0.001", false},
		{"10.999", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			require.Equal(t, tt.valid, IsValidAmount(decimal.RequireFromString(tt.amount)))
		})
	}
}
