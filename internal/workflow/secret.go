package workflow

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// newSecret returns a 128-bit random claim secret as lowercase hex.
func newSecret() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
