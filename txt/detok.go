// Package txt turns subword token IDs back into text as they arrive.
package txt

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// StartToken is the "no previous token" sentinel. It matches the
// tokenizer's own beginning-of-sequence ID.
const StartToken = 0

// ErrDecode wraps every tokenizer failure seen by the detokenizer.
var ErrDecode = errors.New("tokenizer decode failed")

// Tokenizer maps a token ID sequence to text. The rendering of a token may
// depend on the token before it. The detokenizer only ever asks for one or
// two IDs at a time.
type Tokenizer interface {
	Decode(ids []int) (string, error)
}

// Detokenizer emits, for each new token, only the text that token adds
// given the token before it. Its whole state is the previous token ID.
//
// For a token t after prev it decodes [prev] and [prev, t] and emits what
// the pair adds beyond the single. When the pair is no longer than the
// single the token is degenerate: it emits nothing and is counted. Either
// way prev becomes t. Decode failures are returned and leave prev alone.
//
// A Detokenizer is not safe for concurrent use.
type Detokenizer struct {
	tok  Tokenizer
	prev int

	tokens     int
	degenerate int
}

func NewDetokenizer(tok Tokenizer) *Detokenizer {
	return &Detokenizer{tok: tok, prev: StartToken}
}

// Push consumes one token and returns the newly revealed text, which may
// be empty.
func (d *Detokenizer) Push(t int) (string, error) {
	single, err := d.tok.Decode([]int{d.prev})
	if err != nil {
		return "", fmt.Errorf("%w: [%d]: %v", ErrDecode, d.prev, err)
	}
	pair, err := d.tok.Decode([]int{d.prev, t})
	if err != nil {
		return "", fmt.Errorf("%w: [%d %d]: %v", ErrDecode, d.prev, t, err)
	}

	d.prev = t
	d.tokens++
	if len(pair) <= len(single) {
		d.degenerate++
		return "", nil
	}
	start := cut(pair, len(single))
	if start == len(pair) {
		d.degenerate++
		return "", nil
	}
	return pair[start:], nil
}

// Reset forgets the previous token.
func (d *Detokenizer) Reset() {
	d.prev = StartToken
}

// Prev is the token the next Push will be decoded against.
func (d *Detokenizer) Prev() int {
	return d.prev
}

// Tokens is the number of tokens pushed successfully.
func (d *Detokenizer) Tokens() int {
	return d.tokens
}

// Degenerate is the number of tokens that added no text.
func (d *Detokenizer) Degenerate() int {
	return d.degenerate
}

// cut moves i forward to the next rune boundary in s so a fragment never
// starts in the middle of a UTF-8 sequence.
func cut(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
