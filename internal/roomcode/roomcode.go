package roomcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Length is the number of characters in a room code.
const Length = 6

// Alphabet holds the characters a room code may contain.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandSource interface for dependency injection of randomness
type RandSource interface {
	IntN(n int) int
}

// Generator produces room codes from a RandSource, or from crypto/rand
// when none is given.
type Generator struct {
	randSource RandSource
}

// NewGenerator creates a new generator with optional RandSource
func NewGenerator(randSource RandSource) *Generator {
	return &Generator{randSource: randSource}
}

// Generate creates a room code using the generator's RandSource
func (g *Generator) Generate() string {
	var b strings.Builder
	b.Grow(Length)
	for range Length {
		b.WriteByte(Alphabet[g.intN(len(Alphabet))])
	}
	return b.String()
}

func (g *Generator) intN(n int) int {
	if g.randSource != nil {
		return g.randSource.IntN(n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("failed to generate random room code: " + err.Error())
	}
	return int(v.Int64())
}

// Normalize upper-cases a user-typed code and trims surrounding space.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks that code is exactly Length characters from Alphabet.
func Validate(code string) error {
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
