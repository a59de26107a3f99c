package saju

// Day-master strength scoring. Each of the eight chart positions
// contributes by its element's relation to the day master, weighted by
// position. The month pillar dominates: the month branch (월령) carries
// the season and gets the largest weight.
const (
	weightMonthStem   = 1.3
	weightMonthBranch = 1.8
	weightDefault     = 1.0

	contribSame        = 1.0
	contribGeneratesMe = 0.8
	contribIGenerate   = -0.6
	contribControlsMe  = -1.0
	contribIControl    = -0.4

	strongThreshold = 2.0
	weakThreshold   = -2.0
)

// StrengthLabel is the three-way verdict on a day master.
type StrengthLabel string

const (
	Strong   StrengthLabel = "신강"
	Balanced StrengthLabel = "중화"
	Weak     StrengthLabel = "신약"
)

// Strength is the scored day-master verdict. Favorable lists the elements
// that help this chart: supporters for a weak master, drainers for a
// strong one.
type Strength struct {
	Score     float64       `json:"score"`
	Label     StrengthLabel `json:"label"`
	Favorable []Element     `json:"favorable"`
}

func relationContribution(rel Relation) float64 {
	switch rel {
	case RelationSame:
		return contribSame
	case RelationGeneratesMe:
		return contribGeneratesMe
	case RelationIGenerate:
		return contribIGenerate
	case RelationControlsMe:
		return contribControlsMe
	default:
		return contribIControl
	}
}

// EvaluateStrength scores the day master against all eight positions.
// The day stem itself counts as a same-element peer at default weight.
func EvaluateStrength(p Pillars) Strength {
	me := p.DayMasterElement()

	score := 0.0
	add := func(e Element, weight float64) {
		score += weight * relationContribution(Relate(me, e))
	}

	add(stemElements[p.Year.Stem], weightDefault)
	add(stemElements[p.Month.Stem], weightMonthStem)
	add(stemElements[p.Day.Stem], weightDefault)
	add(stemElements[p.Hour.Stem], weightDefault)
	add(branchElements[p.Year.Branch], weightDefault)
	add(branchElements[p.Month.Branch], weightMonthBranch)
	add(branchElements[p.Day.Branch], weightDefault)
	add(branchElements[p.Hour.Branch], weightDefault)

	label := Balanced
	switch {
	case score >= strongThreshold:
		label = Strong
	case score <= weakThreshold:
		label = Weak
	}

	return Strength{
		Score:     score,
		Label:     label,
		Favorable: favorableElements(me, label),
	}
}

// favorableElements picks the helpful elements for a verdict. A weak
// master wants peers and its producer; a strong one wants what drains or
// checks it; a balanced chart keeps the producer and the output.
func favorableElements(me Element, label StrengthLabel) []Element {
	switch label {
	case Weak:
		return []Element{me, producerOf(me)}
	case Strong:
		return []Element{me.Generates(), me.Controls(), controllerOf(me)}
	default:
		return []Element{producerOf(me), me.Generates()}
	}
}

// producerOf returns the element that generates e.
func producerOf(e Element) Element { return (e + 4) % 5 }

// controllerOf returns the element that controls e.
func controllerOf(e Element) Element { return (e + 3) % 5 }
