package minifier

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Strip removes comments and needless whitespace without rewriting any
// tokens.
type Strip struct{}

func (Strip) Minify(_ context.Context, ct CodeType, source string) (string, error) {
	switch ct {
	case CSS:
		return StripCSS(source), nil
	case JS:
		return StripJS(source), nil
	default:
		return "", fmt.Errorf("strip: unsupported code type %q", ct)
	}
}

var (
	cssCommentRe    = regexp.MustCompile(`/\*[^*]*\*+([^/][^*]*\*+)*/`)
	cssWhitespaceRe = regexp.MustCompile(`\s+`)
	cssPunctRe      = regexp.MustCompile(` *([{}+>:;,]) *`)
	cssEmptyRuleRe  = regexp.MustCompile(`[^{}]+\{\}`)
)

func StripCSS(css string) string {
	css = cssCommentRe.ReplaceAllString(css, "")
	css = cssWhitespaceRe.ReplaceAllString(css, " ")
	css = cssPunctRe.ReplaceAllString(strings.TrimSpace(css), "$1")
	// last declaration of a block needs no semicolon
	css = strings.ReplaceAll(css, ";}", "}")
	return cssEmptyRuleRe.ReplaceAllString(css, "")
}

// regexPrecedents are the characters after which a slash starts a regular
// expression literal instead of a division.
const regexPrecedents = "(,=:[!&|?{};~^%*+-<>"

// keywords after which a slash starts a regular expression literal
var regexKeywords = map[string]bool{
	"return": true, "typeof": true, "case": true, "do": true, "else": true,
	"in": true, "instanceof": true, "new": true, "delete": true, "void": true,
	"throw": true, "yield": true, "await": true,
}

// StripJS removes comments and collapses whitespace in the manner of jsmin.
// String, template and regular expression literals are copied verbatim and
// line breaks are kept (collapsed) so automatic semicolon insertion still
// sees them.
func StripJS(js string) string {
	var (
		out            strings.Builder
		last           byte
		pendingSpace   bool
		pendingNewline bool
	)
	out.Grow(len(js))

	n := len(js)
	for i := 0; i < n; {
		c := js[i]
		switch {
		case c == '/' && i+1 < n && js[i+1] == '/':
			for i < n && js[i] != '\n' {
				i++
			}
			continue
		case c == '/' && i+1 < n && js[i+1] == '*':
			end := strings.Index(js[i+2:], "*/")
			if end < 0 {
				i = n
				continue
			}
			if strings.ContainsAny(js[i+2:i+2+end], "\n\r") {
				pendingNewline = true
			} else {
				pendingSpace = true
			}
			i += end + 4
			continue
		case c == '\n' || c == '\r':
			pendingNewline = true
			i++
			continue
		case c == ' ' || c == '\t' || c == '\f' || c == '\v':
			pendingSpace = true
			i++
			continue
		}

		if last != 0 {
			if pendingNewline {
				out.WriteByte('\n')
			} else if pendingSpace && needsSpace(last, c) {
				out.WriteByte(' ')
			}
		}
		pendingSpace, pendingNewline = false, false

		switch {
		case c == '"' || c == '\'' || c == '`':
			end := literalEnd(js, i, c)
			out.WriteString(js[i:end])
			i = end
			last = c
		case c == '/' && startsRegex(out.String(), last):
			end := regexEnd(js, i)
			out.WriteString(js[i:end])
			i = end
			last = '/'
		default:
			out.WriteByte(c)
			last = c
			i++
		}
	}
	return out.String()
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '$' || c == '\\' || c >= 0x80
}

func needsSpace(a, b byte) bool {
	if isWordChar(a) && isWordChar(b) {
		return true
	}
	// "1 .toString()" must not become a decimal point
	if a >= '0' && a <= '9' && b == '.' {
		return true
	}
	// "a + +b" and "a - -b" must not become increments
	return a == b && (a == '+' || a == '-')
}

func startsRegex(emitted string, last byte) bool {
	if last == 0 || strings.IndexByte(regexPrecedents, last) >= 0 {
		return true
	}
	if !isWordChar(last) {
		return false
	}
	i := len(emitted)
	for i > 0 && isWordChar(emitted[i-1]) {
		i--
	}
	return regexKeywords[emitted[i:]]
}

// literalEnd returns the index just past the string literal starting at i.
func literalEnd(js string, i int, quote byte) int {
	for j := i + 1; j < len(js); j++ {
		switch js[j] {
		case '\\':
			j++
		case quote:
			return j + 1
		case '\n':
			// unterminated, except in template literals
			if quote != '`' {
				return j
			}
		}
	}
	return len(js)
}

// regexEnd returns the index just past the regular expression literal
// starting at i, flags excluded.
func regexEnd(js string, i int) int {
	inClass := false
	for j := i + 1; j < len(js); j++ {
		switch js[j] {
		case '\\':
			j++
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '/':
			if !inClass {
				return j + 1
			}
		case '\n':
			return j
		}
	}
	return len(js)
}
