package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	base36Chars = "0123456789abcdefghijklmnopqrstuvwxyz"
	// RandomSlugLength is the length of generated slugs
	RandomSlugLength = 8
)

// RandomSlug returns a random lowercase base-36 slug
func RandomSlug() (string, error) {
	buf := make([]byte, RandomSlugLength)
	max := big.NewInt(int64(len(base36Chars)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		buf[i] = base36Chars[n.Int64()]
	}
	return string(buf), nil
}
