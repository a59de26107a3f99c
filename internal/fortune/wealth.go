package fortune

import (
	"github.com/haneul-labs/saju-engine/internal/saju"
)

// Wealth analysis reads the chart's ten-god layout:
//
//	재성 (정재/편재)  the wealth stars; where they sit decides stability
//	                 (정재) versus opportunity (편재)
//	식상             productivity, the engine that feeds the wealth stars
//	비겁             peers competing for the same wealth, the risk axis
//
// Timing starts from the current year-luck god and moves ±10 per branch
// combine/clash the year triggers. Overall is the weighted sum
// 0.25*stability + 0.25*opportunity + 0.20*productivity + 0.15*risk + 0.15*timing.
const (
	wealthBase     = 50
	jeongjaeBonus  = 18
	pyeonjaeBonus  = 18
	siksangBonus   = 12
	bigyeopPenalty = 14
	timingCombine  = 10
	timingClash    = 10
)

// WealthResult is the deterministic wealth verdict for one chart.
type WealthResult struct {
	Overall int    `json:"overall"`
	Grade   string `json:"grade"`

	Stability    int `json:"stability"`
	Opportunity  int `json:"opportunity"`
	Productivity int `json:"productivity"`
	Risk         int `json:"risk"`
	Timing       int `json:"timing"`

	HasJeongjae bool `json:"hasJeongjae"`
	HasPyeonjae bool `json:"hasPyeonjae"`
	SiksangN    int  `json:"siksangCount"`
	BigyeopN    int  `json:"bigyeopCount"`

	YearGod saju.Yukchin `json:"yearGod"`
}

// timingByYearGod is the base timing score for the current year's god
// against the day master. Wealth and output years open doors; peer years
// mean competition.
var timingByYearGod = map[saju.Yukchin]int{
	saju.Jeongjae:  85,
	saju.Pyeonjae:  80,
	saju.Siksin:    75,
	saju.Sanggwan:  70,
	saju.Jeonggwan: 62,
	saju.Pyeongwan: 55,
	saju.Jeongin:   60,
	saju.Pyeonin:   58,
	saju.Bigyeon:   48,
	saju.Geopjae:   42,
}

// Wealth scores one chart for the given calendar year.
func Wealth(p saju.Pillars, year int) WealthResult {
	gods := saju.EvaluateYukchin(p)
	luck := saju.EvaluateYearLuck(p, year)

	hasJeongjae := hasGod(gods, saju.Jeongjae)
	hasPyeonjae := hasGod(gods, saju.Pyeonjae)
	siksang := gods.Count("식상")
	bigyeop := gods.Count("비겁")

	stability := wealthBase
	if hasJeongjae {
		stability += jeongjaeBonus
	}
	if gods.MonthStem == saju.Jeongjae || gods.MonthBranch == saju.Jeongjae {
		// A wealth star commanding the month pillar anchors income.
		stability += 8
	}

	opportunity := wealthBase
	if hasPyeonjae {
		opportunity += pyeonjaeBonus
	}
	if gods.HourStem == saju.Pyeonjae || gods.HourBranch == saju.Pyeonjae {
		opportunity += 8
	}

	productivity := wealthBase + siksangBonus*min(siksang, 3)

	risk := 80 - bigyeopPenalty*min(bigyeop, 3)

	timing := timingByYearGod[luck.Yukchin]
	timing += timingCombine * luck.CombineCount()
	timing -= timingClash * luck.ClashCount()

	stability = clamp(stability, 20, 95)
	opportunity = clamp(opportunity, 20, 95)
	productivity = clamp(productivity, 20, 95)
	risk = clamp(risk, 20, 95)
	timing = clamp(timing, 20, 95)

	overall := (25*stability + 25*opportunity + 20*productivity + 15*risk + 15*timing) / 100

	return WealthResult{
		Overall:      overall,
		Grade:        gradeOf(overall),
		Stability:    stability,
		Opportunity:  opportunity,
		Productivity: productivity,
		Risk:         risk,
		Timing:       timing,
		HasJeongjae:  hasJeongjae,
		HasPyeonjae:  hasPyeonjae,
		SiksangN:     siksang,
		BigyeopN:     bigyeop,
		YearGod:      luck.Yukchin,
	}
}

func hasGod(c saju.ChartYukchin, y saju.Yukchin) bool {
	for _, g := range []saju.Yukchin{
		c.YearStem, c.MonthStem, c.HourStem,
		c.YearBranch, c.MonthBranch, c.DayBranch, c.HourBranch,
	} {
		if g == y {
			return true
		}
	}
	return false
}
