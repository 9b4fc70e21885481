package store

import (
	"crypto/sha256"
	"fmt"
)

// HashScript returns the hex SHA-256 of a script's source, so sessions of
// the same script revision can be grouped.
func HashScript(source string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(source)))
}
