package calendar

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitTitle separates a decorative leading marker (an emoji or similar
// symbol) from the rest of a stored title so the edit form can present them
// as distinct fields. Titles without a marker come back unchanged.
func SplitTitle(title string) (emoji, rest string) {
	r, size := utf8.DecodeRuneInString(title)
	if r == utf8.RuneError || !isMarker(r) {
		return "", title
	}
	return string(r), strings.TrimLeft(title[size:], " ")
}

// JoinTitle re-applies the marker the way the stored form keeps it: marker,
// one space, then the text.
func JoinTitle(emoji, title string) string {
	if emoji == "" {
		return title
	}
	return emoji + " " + title
}

func isMarker(r rune) bool {
	if r <= unicode.MaxASCII {
		return false
	}
	return unicode.Is(unicode.So, r) || unicode.Is(unicode.Sk, r) || r >= 0x1F000
}
