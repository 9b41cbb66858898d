package internal

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// NumericCode returns a fixed-length numeric one-time code drawn from
// crypto/rand. Each digit is sampled independently so the code has no
// modulo bias.
func NumericCode(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid code digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	code := b.String()
	if len(code) != digits {
		return "", fmt.Errorf("invalid code generation length")
	}
	return code, nil
}
