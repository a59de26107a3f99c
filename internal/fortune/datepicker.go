package fortune

import (
	"sort"
	"time"

	"github.com/haneul-labs/saju-engine/internal/saju"
)

// Auspicious-date picking scores each upcoming day against the user's
// day branch and the event's preferred element:
//
//	branch clash with the user's day branch  -25
//	branch combine                           +15
//	day element == event element             +12
//	day element generates the event element  +10
//	event element generates the day element   +5
//	day element controls the event element   -15
//
// on a base of 60, clamped to [15,100].
const (
	datePickBase = 60

	datePickClash      = -25
	datePickCombine    = 15
	datePickSameElem   = 12
	datePickGenerates  = 10
	datePickGenerated  = 5
	datePickControlled = -15
)

// EventType is the occasion a date is picked for.
type EventType string

const (
	EventWedding  EventType = "결혼"
	EventMoving   EventType = "이사"
	EventContract EventType = "계약"
	EventOpening  EventType = "개업"
	EventTravel   EventType = "여행"
	EventExam     EventType = "시험"
)

// eventElements maps each occasion to the element tradition favors for
// it: growth for weddings, stability for moves and contracts, fire for
// openings, movement for travel, insight for exams.
var eventElements = map[EventType]saju.Element{
	EventWedding:  saju.Wood,
	EventMoving:   saju.Earth,
	EventContract: saju.Metal,
	EventOpening:  saju.Fire,
	EventTravel:   saju.Water,
	EventExam:     saju.Water,
}

// ScoredDay is one candidate day with its verdict.
type ScoredDay struct {
	Date   string      `json:"date"`
	Pillar saju.Pillar `json:"pillar"`
	Score  int         `json:"score"`
	Grade  string      `json:"grade"`
}

// PickDates scores the next n days from the day after start for the
// event, best first. Ties keep chronological order.
func PickDates(p saju.Pillars, event EventType, start time.Time, n int) []ScoredDay {
	if n <= 0 {
		n = 14
	}
	eventElem, ok := eventElements[event]
	if !ok {
		eventElem = saju.Earth
	}

	out := make([]ScoredDay, 0, n)
	for i := 1; i <= n; i++ {
		d := start.AddDate(0, 0, i)
		pillar := saju.DayPillarOf(d.Year(), int(d.Month()), d.Day())
		score := scoreDay(p, pillar, eventElem)
		out = append(out, ScoredDay{
			Date:   d.Format("2006-01-02"),
			Pillar: pillar,
			Score:  score,
			Grade:  gradeOf(score),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func scoreDay(p saju.Pillars, day saju.Pillar, eventElem saju.Element) int {
	score := datePickBase

	if saju.IsClash(day.Branch, p.Day.Branch) {
		score += datePickClash
	}
	if saju.IsCombine(day.Branch, p.Day.Branch) {
		score += datePickCombine
	}

	dayElem := saju.BranchElement(day.Branch)
	switch {
	case dayElem == eventElem:
		score += datePickSameElem
	case dayElem.Generates() == eventElem:
		score += datePickGenerates
	case eventElem.Generates() == dayElem:
		score += datePickGenerated
	case dayElem.Controls() == eventElem:
		score += datePickControlled
	}

	return clamp(score, 15, 100)
}
