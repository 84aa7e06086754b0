package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"os"
	"strings"
	"unicode/utf8"
)

// GetSecret prefers the inline value, then the first non-empty line of file.
func GetSecret(conf string, file string) string {
	if conf == "" && file == "" {
		return ""
	}

	if conf != "" {
		return conf
	}

	contents, err := os.ReadFile(file)
	if err != nil {
		return ""
	}

	return ParseSecretFile(string(contents))
}

func ParseSecretFile(contents string) string {
	lines := strings.Split(contents, "\n")

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		return strings.TrimSpace(line)
	}

	return ""
}

// These could definitely be improved A LOT but at least they are cryptographically secure
func GetRandomString(length int) (string, error) {
	if length < 1 {
		return "", errors.New("length must be greater than 0")
	}
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	return state[:length], nil
}

const maskVisibleChars = 4

// MaskSecret hides everything but a fixed length suffix. Short secrets are hidden entirely.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if utf8.RuneCountInString(secret) <= maskVisibleChars*2 {
		return "••••"
	}
	runes := []rune(secret)
	return "••••" + string(runes[len(runes)-maskVisibleChars:])
}
