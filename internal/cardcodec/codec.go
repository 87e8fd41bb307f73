// Package cardcodec turns clear card numbers into the stored form and back.
//
// Encoding is deterministic AES-SIV: the same number under the same key always
// yields the same ciphertext. The store relies on this to keep numbers unique
// with a plain equality constraint, at the price of revealing that two stored
// values are equal.
package cardcodec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"unicode"

	"github.com/tink-crypto/tink-go/v2/daead/subtle"
	"golang.org/x/crypto/hkdf"

	"github.com/nkiryanov/bankcards/internal/apperrors"
	"github.com/nkiryanov/bankcards/internal/service/validate"
)

const (
	// NumberLen is the length of generated card numbers, check digit included
	NumberLen = 16

	maskPrefix = "**** **** **** "

	keyInfo = "bankcards/card-number/aes-siv"
)

// Bound into every ciphertext, values encrypted for another purpose under the same key don't decode
var associatedData = []byte("card-number")

var encoding = base64.RawURLEncoding

// Config is read once at startup and never changes afterwards
type Config struct {
	// Secret the encryption key is derived from
	Key string
}

// Codec is a deterministic authenticated cipher for card numbers
type Codec struct {
	siv *subtle.AESSIV
}

func New(cfg Config) (*Codec, error) {
	if cfg.Key == "" {
		return nil, errors.New("card codec key must not be empty")
	}

	key := make([]byte, subtle.AESSIVKeySize)
	_, err := io.ReadFull(hkdf.New(sha256.New, []byte(cfg.Key), nil, []byte(keyInfo)), key)
	if err != nil {
		return nil, fmt.Errorf("error while deriving key. Err: %w", err)
	}

	siv, err := subtle.NewAESSIV(key)
	if err != nil {
		return nil, fmt.Errorf("error while creating cipher. Err: %w", err)
	}

	return &Codec{siv: siv}, nil
}

// Encode returns base64url of the AES-SIV ciphertext
func (c *Codec) Encode(plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("empty card number: %w", apperrors.ErrInvalidArgument)
	}

	sealed, err := c.siv.EncryptDeterministically([]byte(plain), associatedData)
	if err != nil {
		return "", fmt.Errorf("error while encrypting card number. Err: %w", err)
	}

	return encoding.EncodeToString(sealed), nil
}

// Decode is the inverse of Encode.
// Any malformed or foreign input fails with apperrors.ErrDecode.
func (c *Codec) Decode(encoded string) (string, error) {
	raw, err := encoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: not base64: %v", apperrors.ErrDecode, err)
	}

	plain, err := c.siv.DecryptDeterministically(raw, associatedData)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrDecode, err)
	}

	return string(plain), nil
}

// Generate returns a random 16 digit number with a valid Luhn check digit
func (c *Codec) Generate() (string, error) {
	return Generate()
}

func Generate() (string, error) {
	var b strings.Builder
	b.Grow(NumberLen)

	ten := big.NewInt(10)
	for range NumberLen - 1 {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("error while generating card number. Err: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	check, err := validate.CheckDigit(b.String())
	if err != nil {
		return "", err
	}
	b.WriteByte(check)

	return b.String(), nil
}

// Mask hides all but the last four digits.
// Whitespace is stripped first; four characters or fewer are returned as is.
func Mask(plain string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, plain)

	runes := []rune(stripped)
	if len(runes) <= 4 {
		return stripped
	}

	return maskPrefix + string(runes[len(runes)-4:])
}
