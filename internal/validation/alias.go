package validation

import (
	"errors"
	"strings"

	"github.com/Varun5711/shortqr/internal/idgen"
)

const (
	MinAliasLength = 3
	MaxAliasLength = 20
)

var (
	ErrAliasTooShort     = errors.New("alias must be at least 3 characters")
	ErrAliasTooLong      = errors.New("alias must be at most 20 characters")
	ErrAliasInvalidChars = errors.New("alias can only contain letters and numbers")
	ErrAliasReserved     = errors.New("alias is reserved and cannot be used")
)

// Route names and well-known paths that would shadow GET /{code}.
var reservedWords = map[string]bool{
	"api":       true,
	"admin":     true,
	"health":    true,
	"status":    true,
	"metrics":   true,
	"dashboard": true,
	"login":     true,
	"logout":    true,
	"register":  true,
	"auth":      true,
	"static":    true,
	"assets":    true,
	"docs":      true,
	"swagger":   true,
	"favicon":   true,
	"robots":    true,
	"sitemap":   true,
	"www":       true,
	"app":       true,
}

func ValidateAlias(alias string) error {
	if len(alias) < MinAliasLength {
		return ErrAliasTooShort
	}
	if len(alias) > MaxAliasLength {
		return ErrAliasTooLong
	}
	if !idgen.IsBase62(alias) {
		return ErrAliasInvalidChars
	}
	if reservedWords[strings.ToLower(alias)] {
		return ErrAliasReserved
	}
	return nil
}

func IsReserved(word string) bool {
	return reservedWords[strings.ToLower(word)]
}
