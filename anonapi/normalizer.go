package anonapi

import (
	"bytes"
	"unicode"
	"unicode/utf8"
)

// BodyNormalizer rewrites a response body before it is decoded.
type BodyNormalizer interface {
	Normalize(body []byte) []byte
}

// EmptyArrayPrefix strips the spurious "[]" the backend sometimes prepends to
// a JSON array. Bodies that do not continue with an array are left alone.
type EmptyArrayPrefix struct{}

func (EmptyArrayPrefix) Normalize(body []byte) []byte {
	rest, ok := bytes.CutPrefix(body, []byte("[]"))
	if !ok {
		return body
	}
	rest = bytes.TrimLeftFunc(rest, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\u200b' || r == '\ufeff'
	})
	if r, _ := utf8.DecodeRune(rest); r != '[' {
		return body
	}
	return rest
}

// NopNormalizer passes bodies through untouched.
type NopNormalizer struct{}

func (NopNormalizer) Normalize(body []byte) []byte { return body }

var (
	_ BodyNormalizer = EmptyArrayPrefix{}
	_ BodyNormalizer = NopNormalizer{}
)
