package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"unicode/utf8"
)

// DefaultPrefix namespaces generated-artifact keys in the shared store.
const DefaultPrefix = "gpt-cache:"

// ErrInvalidEncoding is returned for prompts that are not valid UTF-8. The key
// space is only meaningful over well-formed text, so callers must abort.
var ErrInvalidEncoding = errors.New("keys: prompt is not valid UTF-8")

// Fingerprinter derives cache keys from canonical prompt text.
type Fingerprinter struct {
	prefix string
}

func New(prefix string) Fingerprinter {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultPrefix
	}
	return Fingerprinter{prefix: prefix}
}

func (f Fingerprinter) Prefix() string {
	if f.prefix == "" {
		return DefaultPrefix
	}
	return f.prefix
}

// Key hashes the exact bytes of prompt with SHA-256. No normalization is
// applied: whitespace or field-order differences produce different keys.
func (f Fingerprinter) Key(prompt string) (string, error) {
	if !utf8.ValidString(prompt) {
		return "", ErrInvalidEncoding
	}
	sum := sha256.Sum256([]byte(prompt))
	return f.Prefix() + hex.EncodeToString(sum[:]), nil
}

// Fingerprint keys prompt under DefaultPrefix.
func Fingerprint(prompt string) (string, error) {
	return New(DefaultPrefix).Key(prompt)
}

func MustFingerprint(prompt string) string {
	k, err := Fingerprint(prompt)
	if err != nil {
		panic(err)
	}
	return k
}

// Digest returns the hex part of a key produced by f.
func (f Fingerprinter) Digest(key string) (string, bool) {
	d, ok := strings.CutPrefix(key, f.Prefix())
	if !ok || len(d) != sha256.Size*2 {
		return "", false
	}
	return d, true
}
