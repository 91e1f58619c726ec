// Package utils holds small helpers shared across the service.
package utils

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRandomAlphaNumeric returns a string of length characters drawn
// uniformly from [a-zA-Z0-9] using crypto/rand. It backs OAuth state values
// and snapshot ids.
func GenerateRandomAlphaNumeric(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be greater than 0, got %d", length)
	}

	charsetLen := big.NewInt(int64(len(charset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			slog.Error("Failed to read random bytes", "error", err)
			return "", fmt.Errorf("failed to generate random string: %w", err)
		}
		out[i] = charset[n.Int64()]
	}
	return string(out), nil
}
