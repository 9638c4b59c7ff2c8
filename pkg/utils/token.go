package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateURLToken returns a URL-safe token from n bytes of crypto/rand
// randomness (roughly 4/3*n characters). RawURLEncoding avoids '=' padding
// and the '+'/'/' characters, so the token can ride in a path or query
// string unescaped.
func GenerateURLToken(n int) (string, error) {
	if n <= 0 {
		n = 24
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
