package kollzsh

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// A quote preceded by one or more backslashes is an already-escaped quote,
	// however many times it was escaped on the way here.
	escapedQuoteRe = regexp.MustCompile(`\\+"`)
	doubledSlashRe = regexp.MustCompile(`\\{2,}`)
)

// Normalize turns a raw fragment into a single-line, shell-escaped command.
//
// The pass is repeated until the output is stable, so stacked prompt
// decorations such as "$ $ ls" are peeled one per pass and
// Normalize(Normalize(s)) == Normalize(s) holds for every input. Every pass
// after the first only ever shortens the string, which bounds the loop.
func Normalize(s string) string {
	out := normalizeOnce(s)
	for {
		next := normalizeOnce(out)
		if next == out {
			return out
		}
		out = next
	}
}

func normalizeOnce(s string) string {
	s = blankControls(s)
	s = stripPrompt(s)
	s = escapedQuoteRe.ReplaceAllLiteralString(s, `"`)
	s = doubledSlashRe.ReplaceAllLiteralString(s, `\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return collapseSpace(s)
}

// stripPrompt removes exactly one leading shell prompt character.
func stripPrompt(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '$', '>', '#':
		return s[1:]
	}
	return s
}

// FlattenContent puts a whole JSON-bearing blob on one line: control
// characters become spaces and whitespace runs collapse. Quotes are left
// alone so the blob still decodes.
func FlattenContent(s string) string {
	return collapseSpace(blankControls(s))
}

// blankControls replaces every control character (newlines, tabs, ESC, NUL,
// DEL and the C1 range) with a space.
func blankControls(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

// unescapeQuotes undoes transport over-escaping of a whole blob, as in
// {\"commands\": [...]}.
func unescapeQuotes(s string) string {
	s = escapedQuoteRe.ReplaceAllLiteralString(s, `"`)
	return doubledSlashRe.ReplaceAllLiteralString(s, `\`)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
