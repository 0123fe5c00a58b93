package util

import (
	"crypto/sha256"
	"fmt"
)

// HashContent returns the hex SHA-256 of content. It keys persisted stubs
// so unchanged files can skip parsing.
func HashContent(content string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(content)))
}
