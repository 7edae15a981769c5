package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeUsername prepares a username for use as a template label:
// NFC form, collapsed inner whitespace, no control characters.
// Case and diacritics are preserved ("Jiří" stays "Jiří").
func NormalizeUsername(name string) string {
	t := transform.Chain(norm.NFC, runes.Remove(runes.In(unicode.Cc)))
	result, _, _ := transform.String(t, name)
	return strings.Join(strings.Fields(result), " ")
}
