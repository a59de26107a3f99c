// Package prompt builds the category-specific prompt packages sent to
// the LLM and post-processes what comes back: freemium tag extraction,
// day-pillar hallucination correction and tone matching. Prompts are in
// Korean; every deterministic fact (pillars, year god, current date) is
// injected as a constant so the model never re-derives arithmetic.
package prompt

import (
	"regexp"
	"strings"
)

// FreemiumReply is a paid-track LLM answer split into its visible and
// gated halves.
type FreemiumReply struct {
	FreeText    string `json:"freeText"`
	PremiumText string `json:"premiumText"`
	HasPremium  bool   `json:"hasPremium"`
}

// Tag matching is tolerant: whitespace inside brackets, any case, and a
// missing closing tag (everything to the end counts).
var (
	freeRe    = regexp.MustCompile(`(?is)\[\s*FREE\s*\](.*?)(\[\s*/\s*FREE\s*\]|\[\s*PREMIUM\s*\]|$)`)
	premiumRe = regexp.MustCompile(`(?is)\[\s*PREMIUM\s*\](.*?)(\[\s*/\s*PREMIUM\s*\]|$)`)
)

// ParseFreemium extracts the [FREE] and [PREMIUM] sections. Absent tags
// mean the whole reply is free.
func ParseFreemium(text string) FreemiumReply {
	free := freeRe.FindStringSubmatch(text)
	premium := premiumRe.FindStringSubmatch(text)

	if free == nil && premium == nil {
		return FreemiumReply{FreeText: strings.TrimSpace(text)}
	}

	var out FreemiumReply
	if free != nil {
		out.FreeText = strings.TrimSpace(free[1])
	}
	if premium != nil {
		out.PremiumText = strings.TrimSpace(premium[1])
		out.HasPremium = out.PremiumText != ""
	}
	if out.FreeText == "" && !out.HasPremium {
		out.FreeText = strings.TrimSpace(text)
	}
	return out
}
