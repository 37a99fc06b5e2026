package postgresadapter

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
)

// RandomTokenMinter mints opaque URL-safe bearer tokens with 192 bits of
// entropy from crypto/rand.
type RandomTokenMinter struct{}

func (RandomTokenMinter) NewToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.TrimRight(base64.URLEncoding.EncodeToString(buf), "="), nil
}
