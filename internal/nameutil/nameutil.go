// Package nameutil validates and cleans up target names.
package nameutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// ValidateName checks whether name is usable as a target name. Names must be
// non-empty valid UTF-8 without whitespace or control characters and must not
// start with '-' so they can never be mistaken for a flag.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return eris.New("invalid name: name cannot be empty")
	}
	if !utf8.ValidString(name) {
		return eris.New("invalid name: contains invalid encoding")
	}
	if strings.HasPrefix(name, "-") {
		return eris.Errorf("invalid name %q: must not start with '-'", name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return eris.Errorf("invalid name: contains control character U+%04X (%q)", r, r)
		}
		if unicode.IsSpace(r) {
			return eris.Errorf("invalid name %q: contains whitespace", name)
		}
	}
	return nil
}

// SanitizeName removes control characters and the zero-width runes that
// copy/paste tends to drag along, then trims surrounding whitespace. The
// boolean reports whether anything changed.
func SanitizeName(name string) (string, bool) {
	if name == "" {
		return name, false
	}
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if unicode.IsControl(r) {
			continue
		}
		switch r {
		case '\u200B', '\u200C', '\u200D', '\uFEFF':
			continue
		}
		out = append(out, r)
	}
	res := strings.TrimSpace(string(out))
	return res, res != name
}
