package utils

import (
	"errors"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Field limits
const (
	MaxTitleLength    = 100
	MaxSlugLength     = 25
	MinPasswordLength = 6
	MaxURLLength      = 2048
)

// Validation errors
var (
	ErrEmptyTitle       = errors.New("title is required")
	ErrTitleTooLong     = errors.New("title must be at most 100 characters")
	ErrEmptyURL         = errors.New("URL cannot be empty")
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrInvalidScheme    = errors.New("URL must use http or https scheme")
	ErrMissingHost      = errors.New("URL must have a valid host")
	ErrURLTooLong       = errors.New("URL must be at most 2048 characters")
	ErrSlugTooLong      = errors.New("custom slug must be at most 25 characters")
	ErrSlugWhitespace   = errors.New("custom slug must not contain spaces")
	ErrSlugCharacters   = errors.New("custom slug must not contain '/', '?' or '#'")
	ErrSlugReserved     = errors.New("custom slug is reserved")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
)

// reservedSlugs are top-level routes a slug would shadow
var reservedSlugs = map[string]struct{}{
	"auth":        {},
	"dashboard":   {},
	"banned":      {},
	"forbidden":   {},
	"health":      {},
	"api":         {},
	"static":      {},
	"favicon.ico": {},
}

// ValidateTitle checks a link title
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

// ValidateURL checks that raw is an absolute http(s) URL with a host
func ValidateURL(raw string) error {
	if raw == "" {
		return ErrEmptyURL
	}
	if len(raw) > MaxURLLength {
		return ErrURLTooLong
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidScheme
	}
	if u.Host == "" {
		return ErrMissingHost
	}
	return nil
}

// ValidateSlug checks a user-supplied slug
func ValidateSlug(slug string) error {
	if utf8.RuneCountInString(slug) > MaxSlugLength {
		return ErrSlugTooLong
	}
	for _, r := range slug {
		if unicode.IsSpace(r) {
			return ErrSlugWhitespace
		}
		if r == '/' || r == '?' || r == '#' {
			return ErrSlugCharacters
		}
	}
	if _, ok := reservedSlugs[strings.ToLower(slug)]; ok {
		return ErrSlugReserved
	}
	return nil
}

// ValidatePassword checks the minimum password length
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}
