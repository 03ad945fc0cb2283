package core

import (
	"crypto/sha256"
	"fmt"
)

// ContentDigest returns the hex SHA-256 of content. Audit records carry the
// digest rather than file bodies.
func ContentDigest(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}
