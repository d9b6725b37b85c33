package reading

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ContentUUID derives the content identity of a text: SHA-256 of the trimmed
// text, with the first 32 hex characters formatted 8-4-4-4-12. This is an
// identity hash shaped like a UUID, not a version-4 UUID.
func ContentUUID(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	h := hex.EncodeToString(sum[:])[:32]
	return fmt.Sprintf("%s-%s-%s-%s-%s", h[0:8], h[8:12], h[12:16], h[16:20], h[20:32])
}
