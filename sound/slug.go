package sound

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var ErrEmptySlug = errors.New("name has no usable characters")

// Slug turns a display name into an ASCII identifier: accents are stripped,
// punctuation dropped, and whitespace runs collapsed into single underscores.
func Slug(name string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, name)
	if err != nil {
		return "", err
	}

	filtered := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			return ' '
		}
		return -1
	}, normalized)

	slug := strings.Join(strings.Fields(filtered), "_")
	if slug == "" {
		return "", ErrEmptySlug
	}
	return slug, nil
}
