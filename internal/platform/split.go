package platform

import "strings"

// Kakao delivery limits: a bubble holds one thousand characters and a
// turn holds three bubbles.
const (
	BubbleLimit = 1000
	MaxBubbles  = 3
)

// splitBoundaries in preference order; the splitter cuts at the latest
// occurrence of the strongest boundary inside the limit.
var splitBoundaries = []string{"\n\n", "\n", ". ", " "}

// truncationMark closes a hard-truncated final bubble so the reader can
// tell the reply was cut rather than ended.
const truncationMark = "…"

// SplitBubbles breaks text into at most MaxBubbles strings of at most
// BubbleLimit runes each, cutting on natural boundaries where possible.
// Content that does not fit the first two bubbles is concatenated into
// the last one, truncated only if it alone exceeds the limit.
func SplitBubbles(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var bubbles []string
	rest := text
	for len(bubbles) < MaxBubbles-1 {
		runes := []rune(rest)
		if len(runes) <= BubbleLimit {
			break
		}
		head, tail := cutAt(runes)
		bubbles = append(bubbles, strings.TrimSpace(head))
		rest = strings.TrimSpace(tail)
	}

	// Everything left lands in the final bubble; hard-truncate only when
	// even a dedicated bubble cannot hold it, and mark the cut.
	runes := []rune(rest)
	last := string(runes)
	if len(runes) > BubbleLimit {
		last = strings.TrimSpace(string(runes[:BubbleLimit-1])) + truncationMark
	}
	bubbles = append(bubbles, strings.TrimSpace(last))
	return bubbles
}

// cutAt finds the best split point within the bubble limit: the latest
// occurrence of the strongest boundary, falling back to a hard cut.
func cutAt(runes []rune) (head, tail string) {
	window := string(runes[:BubbleLimit])
	for _, boundary := range splitBoundaries {
		if idx := strings.LastIndex(window, boundary); idx > 0 {
			cut := idx + len(boundary)
			return window[:cut], string(runes)[cut:]
		}
	}
	return window, string(runes[BubbleLimit:])
}
