// Package roomcode generates and validates the short, human-typable codes
// players use to find a host.
package roomcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Alphabet holds the symbols a room code may contain. I, O, L, 0 and 1 are
// left out so codes can be read aloud and typed without confusion.
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// Length is the number of symbols in a room code.
const Length = 4

// RandSource interface for dependency injection of randomness
type RandSource interface {
	Intn(n int) int
}

// Generator creates room codes with configurable randomness
type Generator struct {
	randSource RandSource
}

// NewGenerator creates a new generator with optional RandSource
func NewGenerator(randSource RandSource) *Generator {
	return &Generator{randSource: randSource}
}

// Generate creates a new room code using crypto/rand.
func Generate() string {
	return NewGenerator(nil).Generate()
}

// Generate creates a new room code using the generator's RandSource
func (g *Generator) Generate() string {
	code := make([]byte, Length)
	for i := range code {
		code[i] = Alphabet[g.intn(len(Alphabet))]
	}
	return string(code)
}

func (g *Generator) intn(n int) int {
	if g.randSource != nil {
		return g.randSource.Intn(n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("failed to generate random room code: " + err.Error())
	}
	return int(v.Int64())
}

// Normalize uppercases and trims user input so it can be compared to a code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks that code (after normalization) is a well-formed room code.
func Validate(code string) error {
	code = Normalize(code)
	if len(code) != Length {
		return fmt.Errorf("room code must be exactly %d characters, got %d", Length, len(code))
	}
	for i, char := range code {
		if !strings.ContainsRune(Alphabet, char) {
			return fmt.Errorf("invalid character %c at position %d", char, i)
		}
	}
	return nil
}

// IsValid reports whether code is a well-formed room code.
func IsValid(code string) bool {
	return Validate(code) == nil
}

// PeerAddress returns the transport address a host with the given room code
// listens on.
func PeerAddress(prefix, code string) string {
	return prefix + Normalize(code)
}
