package fortune

import (
	"time"

	"github.com/haneul-labs/saju-engine/internal/saju"
)

// Daily fortune relates today's day pillar to the user's day master.
// The five-phase relation of today's stem picks the category and its
// base score; a clash between today's branch and the user's day branch
// muddies the signal into 중립. Sub-axis numbers perturb the base with a
// jitter seeded by (day of month, user day stem, today's branch) so the
// figures are stable within a KST day yet differ per user.

// DailyCategory names the day's dominant influence.
type DailyCategory string

const (
	DailyBihwa    DailyCategory = "비화"
	DailyInseong  DailyCategory = "인성"
	DailySiksang  DailyCategory = "식상"
	DailyJaeseon  DailyCategory = "재성"
	DailyGwansung DailyCategory = "관성"
	DailyNeutral  DailyCategory = "중립"
)

var dailyCategoryBase = map[DailyCategory]int{
	DailyBihwa:    74,
	DailyInseong:  82,
	DailySiksang:  78,
	DailyJaeseon:  80,
	DailyGwansung: 64,
	DailyNeutral:  70,
}

var relationCategory = map[saju.Relation]DailyCategory{
	saju.RelationSame:        DailyBihwa,
	saju.RelationGeneratesMe: DailyInseong,
	saju.RelationIGenerate:   DailySiksang,
	saju.RelationIControl:    DailyJaeseon,
	saju.RelationControlsMe:  DailyGwansung,
}

// LuckyItems are the table-picked daily charms keyed by the chart's
// helpful element.
type LuckyItems struct {
	Color     string `json:"color"`
	Direction string `json:"direction"`
	Number    int    `json:"number"`
	Food      string `json:"food"`
	Time      string `json:"time"`
}

var luckyByElement = [5]LuckyItems{
	saju.Wood:  {Color: "초록색", Direction: "동쪽", Number: 3, Food: "나물 반찬", Time: "오전 5시~7시"},
	saju.Fire:  {Color: "빨간색", Direction: "남쪽", Number: 7, Food: "매콤한 음식", Time: "오전 11시~오후 1시"},
	saju.Earth: {Color: "노란색", Direction: "중앙·남서쪽", Number: 5, Food: "구황작물", Time: "오후 1시~3시"},
	saju.Metal: {Color: "흰색", Direction: "서쪽", Number: 4, Food: "뿌리채소", Time: "오후 5시~7시"},
	saju.Water: {Color: "검은색", Direction: "북쪽", Number: 1, Food: "해산물", Time: "오후 9시~11시"},
}

// DailyResult is one user's fortune for one KST calendar day.
type DailyResult struct {
	Date      string        `json:"date"`
	DayPillar saju.Pillar   `json:"dayPillar"`
	Category  DailyCategory `json:"category"`
	Overall   int           `json:"overall"`
	Grade     string        `json:"grade"`

	Love   int `json:"love"`
	Money  int `json:"money"`
	Work   int `json:"work"`
	Health int `json:"health"`

	Lucky LuckyItems `json:"lucky"`
}

// Daily computes the fortune of one chart for the KST calendar day of
// the given instant. Deterministic for a fixed (chart, day) pair.
func Daily(p saju.Pillars, kstDay time.Time) DailyResult {
	today := saju.DayPillarOf(kstDay.Year(), int(kstDay.Month()), kstDay.Day())

	rel := saju.Relate(p.DayMasterElement(), saju.StemElement(today.Stem))
	category := relationCategory[rel]
	if saju.IsClash(today.Branch, p.Day.Branch) {
		// A branch clash against the user's own day branch cancels the
		// stem signal; call the day neutral rather than overpromise.
		category = DailyNeutral
	}

	base := dailyCategoryBase[category]
	seedDay := kstDay.Day()
	overall := clamp(base+seededJitter(8, seedDay, p.Day.Stem, today.Branch), 30, 98)

	axis := func(n int) int {
		return clamp(base+seededJitter(12, seedDay, p.Day.Stem, today.Branch, n), 25, 98)
	}

	favorable := p.DayMasterElement()
	if s := saju.EvaluateStrength(p); len(s.Favorable) > 0 {
		favorable = s.Favorable[0]
	}

	return DailyResult{
		Date:      kstDay.Format("2006-01-02"),
		DayPillar: today,
		Category:  category,
		Overall:   overall,
		Grade:     gradeOf(overall),
		Love:      axis(1),
		Money:     axis(2),
		Work:      axis(3),
		Health:    axis(4),
		Lucky:     luckyByElement[favorable],
	}
}
