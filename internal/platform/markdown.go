package platform

import (
	"regexp"
	"strings"
)

var (
	headerRe    = regexp.MustCompile(`(?m)^#{1,6}\s*(.+)$`)
	codeFenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*\n?(.*?)```")
	boldRe      = regexp.MustCompile(`\*\*?([^*\n]+)\*?\*`)
	italicRe    = regexp.MustCompile(`_([^_\n]+)_`)
	inlineRe    = regexp.MustCompile("`([^`\n]+)`")
)

// ToTelegram folds generic markdown into Telegram's legacy Markdown
// flavor: headers become bold lines, double asterisks collapse to
// single, everything else passes through.
func ToTelegram(text string) string {
	text = headerRe.ReplaceAllString(text, "*$1*")
	text = strings.ReplaceAll(text, "**", "*")
	return text
}

// ToPlain strips all formatting for surfaces without rich text (Kakao
// bubbles): headers, bold, italics, code fences and inline code reduce
// to their content.
func ToPlain(text string) string {
	text = codeFenceRe.ReplaceAllString(text, "$1")
	text = headerRe.ReplaceAllString(text, "$1")
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = inlineRe.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}
