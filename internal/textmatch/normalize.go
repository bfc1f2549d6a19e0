package textmatch

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// fullWidth maps full-width CJK punctuation to ASCII
var fullWidth = strings.NewReplacer(
	"：", ":",
	"；", ";",
	"（", "(",
	"）", ")",
	"［", "[",
	"］", "]",
	"｛", "{",
	"｝", "}",
	"＜", "<",
	"＞", ">",
	"，", ",",
	"。", ".",
	"！", "!",
	"？", "?",
	"　", " ",
)

// Normalize converts full-width punctuation to ASCII, case-folds and trims
func Normalize(s string) string {
	// Casers carry state and are not shared between goroutines
	return strings.TrimSpace(cases.Fold().String(fullWidth.Replace(s)))
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
