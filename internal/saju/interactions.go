package saju

// Branch interactions: the pairwise relations between earthly branches
// that the luck and compatibility analyzers look for.
//
//	충 (clash)    six opposing pairs, 6 apart on the wheel
//	합 (combine)  the six harmony pairs 자축 인해 묘술 진유 사신 오미
//	형 (punish)   the 인사신 and 축술미 triads, the 자묘 pair, and the
//	              self-punishing branches 진 오 유 해
type InteractionKind string

const (
	Clash      InteractionKind = "충"
	Combine    InteractionKind = "합"
	Punishment InteractionKind = "형"
)

// IsClash reports whether two branches oppose each other.
func IsClash(a, b int) bool { return mod(a+6, 12) == b }

// IsCombine reports whether two branches form one of the six harmonies.
// All six pairs sum to 1 or 13, so (a+b) mod 12 == 1 covers them exactly.
func IsCombine(a, b int) bool { return mod(a+b, 12) == 1 }

var punishTriads = [2][3]int{
	{2, 5, 8},  // 인사신
	{1, 7, 10}, // 축술미
}

var selfPunish = map[int]bool{4: true, 6: true, 9: true, 11: true}

// IsPunishment reports whether two branches stand in a punishment
// relation: any pair within a triad, the 자묘 pair, or an identical
// self-punishing branch.
func IsPunishment(a, b int) bool {
	if a == b {
		return selfPunish[a]
	}
	if (a == 0 && b == 3) || (a == 3 && b == 0) {
		return true
	}
	for _, triad := range punishTriads {
		ina, inb := false, false
		for _, m := range triad {
			if m == a {
				ina = true
			}
			if m == b {
				inb = true
			}
		}
		if ina && inb {
			return true
		}
	}
	return false
}

// Interact classifies a branch pair, empty string when unrelated.
// Clash wins over punishment when a pair qualifies as both.
func Interact(a, b int) InteractionKind {
	switch {
	case IsClash(a, b):
		return Clash
	case IsCombine(a, b):
		return Combine
	case IsPunishment(a, b):
		return Punishment
	default:
		return ""
	}
}

// BranchHit is one detected interaction between a transit branch and a
// natal position.
type BranchHit struct {
	Position string          `json:"position"`
	Natal    int             `json:"natal"`
	Kind     InteractionKind `json:"kind"`
}

var positionNames = [4]string{"연지", "월지", "일지", "시지"}

// hitsAgainst collects every interaction of a single transit branch with
// the four natal branches.
func hitsAgainst(p Pillars, transit int) []BranchHit {
	var hits []BranchHit
	for i, natal := range p.branches() {
		if kind := Interact(transit, natal); kind != "" {
			hits = append(hits, BranchHit{Position: positionNames[i], Natal: natal, Kind: kind})
		}
	}
	return hits
}

// YearLuck is the evaluated relation of a calendar year to a natal chart.
type YearLuck struct {
	Year     int         `json:"year"`
	Pillar   Pillar      `json:"pillar"`
	Yukchin  Yukchin     `json:"yukchin"`
	Relation Relation    `json:"relation"`
	Hits     []BranchHit `json:"hits,omitempty"`
}

// EvaluateYearLuck relates the year pillar of a calendar year to the
// chart: the year stem's god against the day master plus every branch
// interaction the year branch triggers.
func EvaluateYearLuck(p Pillars, year int) YearLuck {
	yp := YearPillar(year)
	return YearLuck{
		Year:     year,
		Pillar:   yp,
		Yukchin:  StemYukchin(p.Day.Stem, yp.Stem),
		Relation: Relate(p.DayMasterElement(), stemElements[yp.Stem]),
		Hits:     hitsAgainst(p, yp.Branch),
	}
}

// DayLuck evaluates a single day pillar against the chart the same way.
func DayLuck(p Pillars, day Pillar) YearLuck {
	return YearLuck{
		Pillar:   day,
		Yukchin:  StemYukchin(p.Day.Stem, day.Stem),
		Relation: Relate(p.DayMasterElement(), stemElements[day.Stem]),
		Hits:     hitsAgainst(p, day.Branch),
	}
}

// ClashCount returns how many hits are clashes.
func (l YearLuck) ClashCount() int { return l.countKind(Clash) }

// CombineCount returns how many hits are harmonies.
func (l YearLuck) CombineCount() int { return l.countKind(Combine) }

func (l YearLuck) countKind(kind InteractionKind) int {
	n := 0
	for _, h := range l.Hits {
		if h.Kind == kind {
			n++
		}
	}
	return n
}
