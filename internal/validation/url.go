package validation

import (
	"errors"
	"net/url"
	"strings"
)

const MaxURLLength = 2048

var (
	ErrURLRequired    = errors.New("URL is required")
	ErrURLTooLong     = errors.New("URL must be at most 2048 characters")
	ErrURLInvalid     = errors.New("URL must be an absolute http or https URL")
	ErrTargetRejected = errors.New("unsupported or invalid target URL")
)

// ValidateOriginalURL checks a URL submitted for shortening.
func ValidateOriginalURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ErrURLRequired
	}
	if len(raw) > MaxURLLength {
		return ErrURLTooLong
	}

	u, err := url.Parse(raw)
	if err != nil || !isWebScheme(u.Scheme) || u.Hostname() == "" {
		return ErrURLInvalid
	}
	return nil
}

// NormalizeTarget turns a stored URL into a safe redirect target.
// A missing scheme becomes https; only http and https with a host survive;
// an empty path becomes "/".
func NormalizeTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrTargetRejected
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrTargetRejected
	}

	if u.Scheme == "" && u.Host != "" {
		u.Scheme = "https"
	} else if u.Scheme == "" {
		u, err = url.Parse("https://" + raw)
		if err != nil {
			return "", ErrTargetRejected
		}
	}

	if !isWebScheme(u.Scheme) || u.Hostname() == "" {
		return "", ErrTargetRejected
	}
	u.Scheme = strings.ToLower(u.Scheme)

	if u.Path == "" && u.RawPath == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

func isWebScheme(scheme string) bool {
	s := strings.ToLower(scheme)
	return s == "http" || s == "https"
}
