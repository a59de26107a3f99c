package saju

// Relation classifies how another element stands relative to the day
// master's element, following the generation/control cycles.
type Relation int

const (
	RelationSame Relation = iota
	RelationIGenerate
	RelationIControl
	RelationControlsMe
	RelationGeneratesMe
)

var relationNames = [...]string{
	RelationSame:        "비화",
	RelationIGenerate:   "식상",
	RelationIControl:    "재성",
	RelationControlsMe:  "관성",
	RelationGeneratesMe: "인성",
}

// Category returns the ten-god group name for the relation (비화, 식상,
// 재성, 관성, 인성).
func (r Relation) Category() string { return relationNames[r] }

// Relate classifies other against me on the five-phase cycles.
func Relate(me, other Element) Relation {
	switch {
	case me == other:
		return RelationSame
	case me.Generates() == other:
		return RelationIGenerate
	case me.Controls() == other:
		return RelationIControl
	case other.Controls() == me:
		return RelationControlsMe
	default:
		return RelationGeneratesMe
	}
}

// Yukchin is one of the ten gods (십신), the pairwise classification of a
// stem against the day master by element relation and polarity match.
type Yukchin string

const (
	Bigyeon   Yukchin = "비견"
	Geopjae   Yukchin = "겁재"
	Siksin    Yukchin = "식신"
	Sanggwan  Yukchin = "상관"
	Pyeonjae  Yukchin = "편재"
	Jeongjae  Yukchin = "정재"
	Pyeongwan Yukchin = "편관"
	Jeonggwan Yukchin = "정관"
	Pyeonin   Yukchin = "편인"
	Jeongin   Yukchin = "정인"
)

// yukchinPairs maps relation to the (same polarity, different polarity)
// god pair. Same polarity always yields the 편 side except the peer
// relation, where it yields 비견.
var yukchinPairs = [5][2]Yukchin{
	RelationSame:        {Bigyeon, Geopjae},
	RelationIGenerate:   {Siksin, Sanggwan},
	RelationIControl:    {Pyeonjae, Jeongjae},
	RelationControlsMe:  {Pyeongwan, Jeonggwan},
	RelationGeneratesMe: {Pyeonin, Jeongin},
}

// Group returns the five-way category a god belongs to.
func (y Yukchin) Group() string {
	switch y {
	case Bigyeon, Geopjae:
		return "비겁"
	case Siksin, Sanggwan:
		return "식상"
	case Pyeonjae, Jeongjae:
		return "재성"
	case Pyeongwan, Jeonggwan:
		return "관성"
	default:
		return "인성"
	}
}

// StemYukchin classifies another stem against the day master stem.
func StemYukchin(dayStem, other int) Yukchin {
	rel := Relate(stemElements[dayStem], stemElements[other])
	if StemYang(dayStem) == StemYang(other) {
		return yukchinPairs[rel][0]
	}
	return yukchinPairs[rel][1]
}

// BranchYukchin classifies a branch against the day master stem using the
// branch's principal element and index polarity.
func BranchYukchin(dayStem, branch int) Yukchin {
	rel := Relate(stemElements[dayStem], branchElements[branch])
	if StemYang(dayStem) == BranchYang(branch) {
		return yukchinPairs[rel][0]
	}
	return yukchinPairs[rel][1]
}

// ChartYukchin is the god assignment of every position except the day
// stem, which is the reference point itself.
type ChartYukchin struct {
	YearStem    Yukchin `json:"yearStem"`
	MonthStem   Yukchin `json:"monthStem"`
	HourStem    Yukchin `json:"hourStem"`
	YearBranch  Yukchin `json:"yearBranch"`
	MonthBranch Yukchin `json:"monthBranch"`
	DayBranch   Yukchin `json:"dayBranch"`
	HourBranch  Yukchin `json:"hourBranch"`
}

// EvaluateYukchin assigns the ten gods across a chart.
func EvaluateYukchin(p Pillars) ChartYukchin {
	dm := p.Day.Stem
	return ChartYukchin{
		YearStem:    StemYukchin(dm, p.Year.Stem),
		MonthStem:   StemYukchin(dm, p.Month.Stem),
		HourStem:    StemYukchin(dm, p.Hour.Stem),
		YearBranch:  BranchYukchin(dm, p.Year.Branch),
		MonthBranch: BranchYukchin(dm, p.Month.Branch),
		DayBranch:   BranchYukchin(dm, p.Day.Branch),
		HourBranch:  BranchYukchin(dm, p.Hour.Branch),
	}
}

// Has reports whether any position carries a god from the given group.
func (c ChartYukchin) Has(group string) bool {
	for _, y := range c.all() {
		if y.Group() == group {
			return true
		}
	}
	return false
}

// Count returns how many positions carry a god from the given group.
func (c ChartYukchin) Count(group string) int {
	n := 0
	for _, y := range c.all() {
		if y.Group() == group {
			n++
		}
	}
	return n
}

func (c ChartYukchin) all() [7]Yukchin {
	return [7]Yukchin{
		c.YearStem, c.MonthStem, c.HourStem,
		c.YearBranch, c.MonthBranch, c.DayBranch, c.HourBranch,
	}
}
