// Package rollgen produces uniformly distributed dice rolls from a
// cryptographically secure entropy source.
package rollgen

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidRange is returned when a roll is requested against a range below 1.
var ErrInvalidRange = errors.New("invalid roll range")

// span is 2^32, the number of distinct values a single draw can take.
const span = uint64(1) << 32

// Generator draws rolls in [1, maxRange] using rejection sampling so that
// every face is equally likely regardless of maxRange.
type Generator struct {
	source io.Reader
}

// New returns a Generator backed by crypto/rand.
func New() *Generator {
	return &Generator{source: rand.Reader}
}

// NewWithSource returns a Generator reading entropy from source. Intended for
// deterministic tests; production code should use New.
func NewWithSource(source io.Reader) *Generator {
	if source == nil {
		source = rand.Reader
	}
	return &Generator{source: source}
}

// Roll returns a value in [1, maxRange].
func (g *Generator) Roll(maxRange int) (int, error) {
	if maxRange < 1 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRange, maxRange)
	}
	if maxRange == 1 {
		return 1, nil
	}
	if uint64(maxRange) > span {
		return 0, fmt.Errorf("%w: %d exceeds 2^32", ErrInvalidRange, maxRange)
	}

	n := uint64(maxRange)
	limit := (span / n) * n

	var buf [4]byte
	for {
		if _, err := io.ReadFull(g.source, buf[:]); err != nil {
			return 0, fmt.Errorf("failed to read entropy: %w", err)
		}
		draw := uint64(binary.BigEndian.Uint32(buf[:]))
		if draw >= limit {
			continue
		}
		return int(draw%n) + 1, nil
	}
}

// Roll draws from a package-level crypto/rand backed generator.
func Roll(maxRange int) (int, error) {
	return New().Roll(maxRange)
}
