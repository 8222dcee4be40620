package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// DefaultAlphabet leaves out vowels (both cases, including y) and the
// glyphs 0, 1, 3 and l, so a token read aloud or copied by hand survives
// transcription. 46 symbols at length 9 is just under 50 bits.
const DefaultAlphabet = "2456789bcdfghjkmnpqrstvwxzBCDFGHJKLMNPQRSTVWXZ"

// DefaultLength is the respondent token length.
const DefaultLength = 9

// Generator produces fixed-length strings from a restricted alphabet using
// crypto/rand. The scratch buffer is reused across calls, so a single
// Generator is NOT safe for concurrent use; callers needing concurrent
// generation must use separate instances or serialize access.
type Generator struct {
	alphabet []byte
	buf      []byte
}

func NewGenerator(length int, alphabet string) (*Generator, error) {
	if length < 1 {
		return nil, errors.New("token length must be at least 1")
	}

	distinct := make(map[byte]struct{}, len(alphabet))
	for i := 0; i < len(alphabet); i++ {
		distinct[alphabet[i]] = struct{}{}
	}

	if len(distinct) < 2 {
		return nil, errors.New("alphabet must contain at least 2 distinct characters")
	}

	return &Generator{
		alphabet: []byte(alphabet),
		buf:      make([]byte, length),
	}, nil
}

// Next returns a fresh random string of exactly the configured length, each
// character independently and uniformly drawn from the alphabet.
func (g *Generator) Next() (string, error) {
	max := big.NewInt(int64(len(g.alphabet)))

	for i := range g.buf {
		n, err := rand.Int(rand.Reader, max)

		if err != nil {
			return "", fmt.Errorf("read secure random source: %w", err)
		}

		g.buf[i] = g.alphabet[n.Int64()]
	}

	return string(g.buf), nil
}
