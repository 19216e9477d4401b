package telegramutil

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageRunes keeps replies under Telegram's 4096 character limit with
// room for a header and MarkdownV2 escapes.
const MaxMessageRunes = 3500

var markdownV2Escapes = map[rune]bool{
	'\\': true, '_': true, '*': true, '[': true, ']': true, '(': true, ')': true,
	'~': true, '`': true, '>': true, '#': true, '+': true, '-': true, '=': true,
	'|': true, '{': true, '}': true, '.': true, '!': true,
}

func EscapeMarkdownV2(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + 8)
	for _, r := range text {
		if markdownV2Escapes[r] {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SplitText cuts text into chunks of at most maxRunes runes, preferring to cut
// after a newline, then after a space. Chunks are trimmed and never empty.
func SplitText(text string, maxRunes int) []string {
	if maxRunes <= 0 {
		maxRunes = MaxMessageRunes
	}
	text = strings.TrimSpace(text)
	var out []string
	for text != "" {
		if utf8.RuneCountInString(text) <= maxRunes {
			out = append(out, text)
			break
		}
		cut := byteIndexOfRune(text, maxRunes)
		window := text[:cut]
		if i := strings.LastIndexByte(window, '\n'); i > 0 {
			cut = i + 1
		} else if i := strings.LastIndexByte(window, ' '); i > 0 {
			cut = i + 1
		}
		if chunk := strings.TrimSpace(text[:cut]); chunk != "" {
			out = append(out, chunk)
		}
		text = strings.TrimSpace(text[cut:])
	}
	return out
}

func byteIndexOfRune(s string, n int) int {
	i := 0
	for pos := range s {
		if i == n {
			return pos
		}
		i++
	}
	return len(s)
}
