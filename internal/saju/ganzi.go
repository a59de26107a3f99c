package saju

import (
	"strings"

	"github.com/haneul-labs/saju-engine/internal/apperr"
)

// Sexagenary cycle helpers and pillar-token parsing. The parser accepts
// hangul, hanja or mixed tokens ("갑자", "甲子", "갑子") because upstream
// manse providers and LLM output disagree on script.

var stemByRune map[rune]int
var branchByRune map[rune]int

func init() {
	stemByRune = make(map[rune]int, 20)
	branchByRune = make(map[rune]int, 24)
	for i, s := range stemHangul {
		stemByRune[[]rune(s)[0]] = i
	}
	for i, s := range stemHanja {
		stemByRune[[]rune(s)[0]] = i
	}
	for i, b := range branchHangul {
		branchByRune[[]rune(b)[0]] = i
	}
	for i, b := range branchHanja {
		branchByRune[[]rune(b)[0]] = i
	}
}

// Ganzi returns the n-th pillar of the sexagenary cycle, n in [0,60).
func Ganzi(n int) Pillar {
	n = mod(n, 60)
	return Pillar{Stem: n % 10, Branch: n % 12}
}

// GanziIndex returns the cycle index of a pillar, -1 when the stem and
// branch polarity disagree (such pairs never occur in the cycle).
func GanziIndex(p Pillar) int {
	for n := p.Stem; n < 60; n += 10 {
		if n%12 == p.Branch {
			return n
		}
	}
	return -1
}

// DayTokens lists all sixty "간지일" day names in cycle order, hangul.
// The freemium parser uses this to recognize hallucinated day pillars.
func DayTokens() []string {
	out := make([]string, 60)
	for n := 0; n < 60; n++ {
		out[n] = Ganzi(n).Hangul() + "일"
	}
	return out
}

// ParseStemRune resolves a hangul or hanja stem character.
func ParseStemRune(r rune) (int, bool) {
	i, ok := stemByRune[r]
	return i, ok
}

// ParseBranchRune resolves a hangul or hanja branch character.
func ParseBranchRune(r rune) (int, bool) {
	i, ok := branchByRune[r]
	return i, ok
}

// ParsePillarToken parses a two-character stem/branch token in either
// script. Whitespace is tolerated; anything else fails with a parse error.
func ParsePillarToken(s string) (Pillar, error) {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) != 2 {
		return Pillar{}, apperr.Newf(apperr.KindPillarParse, "pillar token %q must be exactly two characters", s)
	}
	stem, ok := ParseStemRune(runes[0])
	if !ok {
		return Pillar{}, apperr.Newf(apperr.KindPillarParse, "unknown stem character %q", string(runes[0]))
	}
	branch, ok := ParseBranchRune(runes[1])
	if !ok {
		return Pillar{}, apperr.Newf(apperr.KindPillarParse, "unknown branch character %q", string(runes[1]))
	}
	return Pillar{Stem: stem, Branch: branch}, nil
}

// NormalizeGanzi rewrites every hanja stem or branch character in s to its
// hangul form, leaving all other characters untouched.
func NormalizeGanzi(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if i, ok := stemByRune[r]; ok && isHanjaStem(r) {
			b.WriteString(stemHangul[i])
			continue
		}
		if i, ok := branchByRune[r]; ok && isHanjaBranch(r) {
			b.WriteString(branchHangul[i])
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isHanjaStem(r rune) bool {
	for _, s := range stemHanja {
		if []rune(s)[0] == r {
			return true
		}
	}
	return false
}

func isHanjaBranch(r rune) bool {
	for _, s := range branchHanja {
		if []rune(s)[0] == r {
			return true
		}
	}
	return false
}
