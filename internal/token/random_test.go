package token_test

import (
	"strings"
	"testing"

	"github.com/geocoder89/surveyhub/internal/token"
)

func TestNewGeneratorRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name     string
		length   int
		alphabet string
	}{
		{name: "zero_length", length: 0, alphabet: "ab"},
		{name: "negative_length", length: -3, alphabet: "ab"},
		{name: "empty_alphabet", length: 9, alphabet: ""},
		{name: "single_char_alphabet", length: 9, alphabet: "a"},
		{name: "repeated_single_char", length: 9, alphabet: "aaaa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := token.NewGenerator(tt.length, tt.alphabet); err == nil {
				t.Fatalf("NewGenerator(%d, %q) expected error", tt.length, tt.alphabet)
			}
		})
	}
}

func TestNextLengthAndAlphabet(t *testing.T) {
	tests := []struct {
		name     string
		length   int
		alphabet string
	}{
		{name: "binary_alphabet", length: 1, alphabet: "ab"},
		{name: "short_token", length: 4, alphabet: "xyz"},
		{name: "default_token", length: token.DefaultLength, alphabet: token.DefaultAlphabet},
		{name: "long_token", length: 64, alphabet: token.DefaultAlphabet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := token.NewGenerator(tt.length, tt.alphabet)
			if err != nil {
				t.Fatalf("NewGenerator: %v", err)
			}

			// a handful of draws per config to catch the obvious failures
			for i := 0; i < 50; i++ {
				s, err := g.Next()
				if err != nil {
					t.Fatalf("Next: %v", err)
				}
				if len(s) != tt.length {
					t.Fatalf("len = %d, want %d", len(s), tt.length)
				}
				for _, r := range s {
					if !strings.ContainsRune(tt.alphabet, r) {
						t.Fatalf("character %q not in alphabet %q", r, tt.alphabet)
					}
				}
			}
		})
	}
}

func TestDefaultAlphabetShape(t *testing.T) {
	seen := map[rune]bool{}
	for _, r := range token.DefaultAlphabet {
		if seen[r] {
			t.Fatalf("duplicate character %q in default alphabet", r)
		}
		seen[r] = true
	}

	for _, r := range "013laeiouyAEIOUY" {
		if seen[r] {
			t.Fatalf("ambiguous character %q must not be in the default alphabet", r)
		}
	}
}

func TestNextDrawsVary(t *testing.T) {
	g, err := token.NewGenerator(token.DefaultLength, token.DefaultAlphabet)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	out := map[string]bool{}
	for i := 0; i < 20; i++ {
		s, err := g.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out[s] = true
	}

	// 20 identical draws from a 46^9 space would mean a broken source
	if len(out) < 2 {
		t.Fatalf("expected varying output, got %d distinct values", len(out))
	}
}
