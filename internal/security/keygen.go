// Package security provides key generation, credential hashing, and
// input format rules shared by the command and HTTP surfaces.
package security

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
)

// keyAlphabet is the character set for license keys. 36 symbols over
// 16 positions gives a 36^16 key space.
const keyAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// keyGroups and keyGroupLen define the XXXX-XXXX-XXXX-XXXX shape.
const (
	keyGroups   = 4
	keyGroupLen = 4
)

// APITokenPrefix marks opaque tokens for the HTTP validation surface.
const APITokenPrefix = "sk_"

var keyPattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

// GenerateKey produces a license key in the form XXXX-XXXX-XXXX-XXXX
// using a cryptographically strong random source.
func GenerateKey() (string, error) {
	groups := make([]string, keyGroups)
	for i := range groups {
		g, err := randomString(keyGroupLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate license key: %w", err)
		}
		groups[i] = g
	}
	return strings.Join(groups, "-"), nil
}

// GenerateAPIToken produces an opaque API token: the sk_ marker followed
// by two license-key-strength random blocks with hyphens stripped.
func GenerateAPIToken() (string, error) {
	first, err := GenerateKey()
	if err != nil {
		return "", err
	}
	second, err := GenerateKey()
	if err != nil {
		return "", err
	}
	raw := strings.ReplaceAll(first+second, "-", "")
	return APITokenPrefix + raw, nil
}

// IsValidKeyFormat reports whether key matches the canonical license
// key grammar. Callers must normalize case first; see NormalizeKey.
func IsValidKeyFormat(key string) bool {
	return keyPattern.MatchString(key)
}

// NormalizeKey uppercases and trims a user-supplied key so lookups are
// case-insensitive.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// randomString draws n characters from keyAlphabet with rejection
// sampling so no character is favored by modulo bias.
func randomString(n int) (string, error) {
	// Largest multiple of len(keyAlphabet) below 256.
	max := byte(256 - (256 % len(keyAlphabet)))

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= max {
				continue
			}
			out = append(out, keyAlphabet[int(b)%len(keyAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
