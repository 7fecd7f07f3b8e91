package server

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// isControl matches the bytes stripped from inbound lines.
func isControl(r rune) bool {
	return r < 0x20
}

// stripControl removes every character below 0x20 (CR, LF, TAB, EOT, ...).
func stripControl(s string) string {
	out, _, _ := transform.String(runes.Remove(runes.Predicate(isControl)), s)
	return out
}

// decodeLine turns one raw input line into arguments. valid is false when
// raw was not UTF-8; args then holds whatever survived decoding.
func decodeLine(raw []byte) (args []string, valid bool) {
	text := string(raw)
	valid = utf8.ValidString(text)
	if !valid {
		text = strings.ToValidUTF8(text, "")
	}
	// tabs and line breaks still separate words
	text = strings.Map(func(r rune) rune {
		if r == '\t' || r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, text)
	return strings.Fields(stripControl(text)), valid
}
