// Package id generates prefixed identifiers.
package id

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes in use. Temp ids mark rows that only exist optimistically in the
// cache until the next revalidation replaces them with server ids.
const (
	PrefixTemp    = "tmp"
	PrefixNote    = "note"
	PrefixTag     = "tag"
	PrefixSession = "sess"
)

// Generate returns "prefix-<nanoid>" (21 URL-safe characters after the dash).
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if the system has no entropy.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// Temp returns a fresh optimistic id.
func Temp() string {
	return MustGenerate(PrefixTemp)
}

// IsTemp reports whether s was produced by Temp.
func IsTemp(s string) bool {
	return strings.HasPrefix(s, PrefixTemp+"-")
}
