// Package id generates the identifiers used for shopping lists and items.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Length is the number of characters in every identifier.
const Length = 24

// alphabet keeps identifiers in the same shape as MongoDB ObjectIDs, so ids
// minted by the embedded stores and by MongoDB are interchangeable.
const alphabet = "0123456789abcdef"

// Generate returns a new 24-character lowercase hex identifier.
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate() (string, error) {
	id, err := gonanoid.Generate(alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate() string {
	id, err := Generate()
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// Valid reports whether s has the shape of a generated identifier.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
