package fortune

import (
	"time"

	"github.com/haneul-labs/saju-engine/internal/saju"
)

// Compatibility scoring combines three independent signals:
//
//	elements  how the two day masters relate on the five-phase cycle
//	branches  clash/combine counts over all sixteen cross-chart pairs
//	balance   how many elements one chart supplies that the other lacks
//
// overall = 0.35*elements + 0.25*branches + 0.25*balance + 0.15*jitter
// clamped to [40,95]. The five sub-axes perturb the overall by at most
// ±10, seeded from both charts and the calendar day so a couple sees the
// same numbers all day.
const (
	combineBonus = 8
	clashPenalty = 12

	overallMin = 40
	overallMax = 95
)

// CompatibilityResult is the full deterministic compatibility verdict
// handed to the prompt assembler.
type CompatibilityResult struct {
	Overall    int    `json:"overall"`
	Grade      string `json:"grade"`
	Descriptor string `json:"descriptor"`

	ElementScore int `json:"elementScore"`
	BranchScore  int `json:"branchScore"`
	BalanceScore int `json:"balanceScore"`

	Combines int `json:"combines"`
	Clashes  int `json:"clashes"`

	Emotion       int `json:"emotion"`
	Communication int `json:"communication"`
	Wealth        int `json:"wealth"`
	Attraction    int `json:"attraction"`
	LongTerm      int `json:"longTerm"`
}

// dayMasterAffinity maps the relation between the two day-master elements
// to a base score in [55,90] and a one-line descriptor.
var dayMasterAffinity = map[saju.Relation]struct {
	score int
	desc  string
}{
	saju.RelationSame:        {72, "같은 기운끼리 만나 서로를 잘 이해하는 관계"},
	saju.RelationGeneratesMe: {90, "상대가 나를 살려주는, 받는 쪽이 든든한 관계"},
	saju.RelationIGenerate:   {85, "내가 상대를 키워주는, 주는 기쁨이 큰 관계"},
	saju.RelationControlsMe:  {55, "상대의 기운이 강해 긴장감이 도는 관계"},
	saju.RelationIControl:    {62, "내가 주도권을 쥐기 쉬운, 균형이 필요한 관계"},
}

// Compatibility scores two natal charts against each other. The date
// seeds the presentation jitter only; the structural scores depend on
// the charts alone.
func Compatibility(mine, partner saju.Pillars, date time.Time) CompatibilityResult {
	rel := saju.Relate(mine.DayMasterElement(), partner.DayMasterElement())
	aff := dayMasterAffinity[rel]

	combines, clashes := crossBranchInteractions(mine, partner)
	branchScore := clamp(70+combineBonus*combines-clashPenalty*clashes, 20, 100)

	balanceScore := elementComplementScore(mine, partner)

	seedA := saju.GanziIndex(mine.Day)
	seedB := saju.GanziIndex(partner.Day)
	day := date.Year()*10000 + int(date.Month())*100 + date.Day()
	jitter := 50 + seededJitter(50, seedA, seedB, day)

	overall := (35*aff.score + 25*branchScore + 25*balanceScore + 15*jitter) / 100
	overall = clamp(overall, overallMin, overallMax)

	axis := func(n int) int {
		return clamp(overall+seededJitter(10, seedA, seedB, day, n), 0, 100)
	}

	return CompatibilityResult{
		Overall:       overall,
		Grade:         gradeOf(overall),
		Descriptor:    aff.desc,
		ElementScore:  aff.score,
		BranchScore:   branchScore,
		BalanceScore:  balanceScore,
		Combines:      combines,
		Clashes:       clashes,
		Emotion:       axis(1),
		Communication: axis(2),
		Wealth:        axis(3),
		Attraction:    axis(4),
		LongTerm:      axis(5),
	}
}

// crossBranchInteractions counts clashes and combines over every pair of
// one branch from each chart (4x4 pairs).
func crossBranchInteractions(a, b saju.Pillars) (combines, clashes int) {
	abranches := [4]int{a.Year.Branch, a.Month.Branch, a.Day.Branch, a.Hour.Branch}
	bbranches := [4]int{b.Year.Branch, b.Month.Branch, b.Day.Branch, b.Hour.Branch}
	for _, x := range abranches {
		for _, y := range bbranches {
			if saju.IsClash(x, y) {
				clashes++
			}
			if saju.IsCombine(x, y) {
				combines++
			}
		}
	}
	return combines, clashes
}

// elementComplementScore rewards charts that fill each other's missing
// elements: +10 per element absent from one chart but present in the
// other, on a base of 55.
func elementComplementScore(a, b saju.Pillars) int {
	ca, cb := saju.CountElements(a), saju.CountElements(b)
	complements := 0
	for e := 0; e < 5; e++ {
		if ca[e] == 0 && cb[e] > 0 {
			complements++
		}
		if cb[e] == 0 && ca[e] > 0 {
			complements++
		}
	}
	return clamp(55+10*complements, 40, 95)
}
