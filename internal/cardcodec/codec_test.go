package cardcodec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/bankcards/internal/apperrors"
	"github.com/nkiryanov/bankcards/internal/service/validate"
)

func newCodec(t *testing.T, key string) *Codec {
	t.Helper()

	c, err := New(Config{Key: key})
	require.NoError(t, err, "codec should be created without errors")
	return c
}

func TestCodec_New(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err, "empty key must be rejected")
}

func TestCodec_EncodeDecode(t *testing.T) {
	c := newCodec(t, "test-card-key")

	t.Run("round trip", func(t *testing.T) {
		for _, plain := range []string{"1234567812345678", "4561261212345467", "1", "1234 5678"} {
			encoded, err := c.Encode(plain)
			require.NoError(t, err)
			require.NotContains(t, encoded, plain, "clear number must not leak into encoded form")

			decoded, err := c.Decode(encoded)
			require.NoError(t, err)
			require.Equal(t, plain, decoded)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		first, err := c.Encode("1234567812345678")
		require.NoError(t, err)
		second, err := c.Encode("1234567812345678")
		require.NoError(t, err)
		other, err := c.Encode("1234567812345679")
		require.NoError(t, err)

		assert.Equal(t, first, second, "same number must encode to the same value")
		assert.NotEqual(t, first, other)
	})

	t.Run("same key same output", func(t *testing.T) {
		a, err := newCodec(t, "shared").Encode("1234567812345678")
		require.NoError(t, err)
		b, err := newCodec(t, "shared").Encode("1234567812345678")
		require.NoError(t, err)

		require.Equal(t, a, b, "output must depend only on key and number")
	})

	t.Run("synthetic iv prepended", func(t *testing.T) {
		encoded, err := c.Encode("1234567812345678")
		require.NoError(t, err)

		raw, err := encoding.DecodeString(encoded)
		require.NoError(t, err)
		require.Len(t, raw, 16+len("1234567812345678"), "AES-SIV adds one 16 byte block to the number")
	})

	t.Run("empty number", func(t *testing.T) {
		_, err := c.Encode("")
		require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	})
}

func TestCodec_DecodeErrors(t *testing.T) {
	c := newCodec(t, "test-card-key")
	encoded, err := c.Encode("1234567812345678")
	require.NoError(t, err)

	// Flip a character in the middle, trailing characters may carry padding bits only
	tampered := []byte(encoded)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}

	tests := []struct {
		name    string
		codec   *Codec
		encoded string
	}{
		{"not base64", c, "%%%not-base64%%%"},
		{"too short", c, "AAAA"},
		{"tampered", c, string(tampered)},
		{"another key", newCodec(t, "another-key"), encoded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.codec.Decode(tt.encoded)

			require.Error(t, err)
			require.ErrorIs(t, err, apperrors.ErrDecode)
		})
	}
}

func TestGenerate(t *testing.T) {
	seen := make(map[string]struct{})

	for range 100 {
		number, err := Generate()
		require.NoError(t, err)

		require.Len(t, number, NumberLen)
		require.Empty(t, strings.Trim(number, "0123456789"), "number must contain digits only")
		require.NoError(t, validate.Luhn(number), "generated number must pass Luhn check")

		seen[number] = struct{}{}
	}

	require.Greater(t, len(seen), 95, "generated numbers should practically never repeat")
}

func TestMask(t *testing.T) {
	tests := []struct {
		plain    string
		expected string
	}{
		{"1234567812345678", "**** **** **** 5678"},
		{"1234 5678 1234 5678", "**** **** **** 5678"},
		{" 12\t34\n5 ", "**** **** **** 2345"},
		{"123", "123"},
		{"12 34", "1234"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.plain, func(t *testing.T) {
			require.Equal(t, tt.expected, Mask(tt.plain))
		})
	}
}
