package idgen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
)

// Alphabet is the base62 digit order; index is digit value.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var (
	ErrEmptyCode    = errors.New("empty string cannot be decoded")
	ErrInvalidChar  = errors.New("invalid base62 character")
	ErrCodeOverflow = errors.New("base62 value overflows int64")
)

var (
	digitValue [256]int8
	alphabetN  = big.NewInt(int64(len(Alphabet)))
)

func init() {
	for i := range digitValue {
		digitValue[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		digitValue[Alphabet[i]] = int8(i)
	}
}

// Encode renders a non-negative number in base62. Negative input encodes as "0".
func Encode(num int64) string {
	if num <= 0 {
		return "0"
	}

	// 11 digits cover math.MaxInt64.
	var buf [11]byte
	i := len(buf)
	for num > 0 {
		i--
		buf[i] = Alphabet[num%62]
		num /= 62
	}
	return string(buf[i:])
}

func Decode(code string) (int64, error) {
	if code == "" {
		return 0, ErrEmptyCode
	}

	var num int64
	for i := 0; i < len(code); i++ {
		v := digitValue[code[i]]
		if v < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidChar, code[i])
		}
		if num > (math.MaxInt64-int64(v))/62 {
			return 0, ErrCodeOverflow
		}
		num = num*62 + int64(v)
	}
	return num, nil
}

// RandomCode draws length characters uniformly from Alphabet using crypto/rand.
func RandomCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", length)
	}

	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetN)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		code[i] = Alphabet[n.Int64()]
	}
	return string(code), nil
}

// IsBase62 reports whether s is non-empty and uses only Alphabet characters.
func IsBase62(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if digitValue[s[i]] < 0 {
			return false
		}
	}
	return true
}
