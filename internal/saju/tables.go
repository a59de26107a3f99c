// Package saju implements the four-pillar (사주) calendar arithmetic used by
// every analyzer in this service:
//
//   - Stem/branch tables with element and polarity metadata
//   - Pillar computation from a birth tuple (year, month, day, hour)
//   - Ten-god (육친) classification of stems against the day master
//   - Day-master strength scoring over the eight chart positions
//   - Branch interaction detection (충/합/형) and yearly luck evaluation
//
// Everything here is pure and deterministic: same birth tuple in, same
// chart out. Interpretation (tone, narrative, scoring of life domains)
// lives in internal/fortune and internal/prompt on top of these primitives.
package saju

// Element is one of the five phases, circularly ordered so that
// generation is +1 and control is +2 modulo 5.
type Element int

const (
	Wood Element = iota
	Fire
	Earth
	Metal
	Water
)

var elementHangul = [5]string{"목", "화", "토", "금", "수"}
var elementHanja = [5]string{"木", "火", "土", "金", "水"}

// Korean returns the hangul element name.
func (e Element) Korean() string { return elementHangul[e] }

// Hanja returns the hanja element glyph.
func (e Element) Hanja() string { return elementHanja[e] }

// Generates returns the element this one produces (목생화, 화생토, ...).
func (e Element) Generates() Element { return (e + 1) % 5 }

// Controls returns the element this one overcomes (목극토, 토극수, ...).
func (e Element) Controls() Element { return (e + 2) % 5 }

// The ten heavenly stems in canonical order 갑을병정무기경신임계.
var stemHangul = [10]string{"갑", "을", "병", "정", "무", "기", "경", "신", "임", "계"}
var stemHanja = [10]string{"甲", "乙", "丙", "丁", "戊", "己", "庚", "辛", "壬", "癸"}

// Stem elements pair off: 갑을 wood, 병정 fire, 무기 earth, 경신 metal, 임계 water.
var stemElements = [10]Element{
	Wood, Wood, Fire, Fire, Earth, Earth, Metal, Metal, Water, Water,
}

// The twelve earthly branches in canonical order 자축인묘진사오미신유술해.
var branchHangul = [12]string{"자", "축", "인", "묘", "진", "사", "오", "미", "신", "유", "술", "해"}
var branchHanja = [12]string{"子", "丑", "寅", "卯", "辰", "巳", "午", "未", "申", "酉", "戌", "亥"}

var branchElements = [12]Element{
	Water, Earth, Wood, Wood, Earth, Fire, Fire, Earth, Metal, Metal, Earth, Water,
}

// Branch animals, used by prompt surfaces (띠).
var branchAnimals = [12]string{
	"쥐", "소", "호랑이", "토끼", "용", "뱀", "말", "양", "원숭이", "닭", "개", "돼지",
}

// StemHangul returns the hangul for stem index i in [0,10).
func StemHangul(i int) string { return stemHangul[i] }

// StemHanja returns the hanja for stem index i.
func StemHanja(i int) string { return stemHanja[i] }

// StemElement returns the element of stem index i.
func StemElement(i int) Element { return stemElements[i] }

// StemYang reports the polarity of stem index i; even indexes are yang.
func StemYang(i int) bool { return i%2 == 0 }

// BranchHangul returns the hangul for branch index i in [0,12).
func BranchHangul(i int) string { return branchHangul[i] }

// BranchHanja returns the hanja for branch index i.
func BranchHanja(i int) string { return branchHanja[i] }

// BranchElement returns the element of branch index i.
func BranchElement(i int) Element { return branchElements[i] }

// BranchYang reports the polarity of branch index i; even indexes are yang.
func BranchYang(i int) bool { return i%2 == 0 }

// BranchAnimal returns the zodiac animal for branch index i.
func BranchAnimal(i int) string { return branchAnimals[i] }

// Pillar is one stem/branch pair of a chart.
type Pillar struct {
	Stem   int `json:"stem"`
	Branch int `json:"branch"`
}

// Hangul renders the pillar as two hangul syllables, e.g. "갑자".
func (p Pillar) Hangul() string { return stemHangul[p.Stem] + branchHangul[p.Branch] }

// Hanja renders the pillar as two hanja glyphs, e.g. "甲子".
func (p Pillar) Hanja() string { return stemHanja[p.Stem] + branchHanja[p.Branch] }

// Pillars is a complete natal chart: year, month, day and hour pillars.
type Pillars struct {
	Year  Pillar `json:"year"`
	Month Pillar `json:"month"`
	Day   Pillar `json:"day"`
	Hour  Pillar `json:"hour"`
}

// DayMaster returns the day stem index, the reference point for all
// ten-god and strength evaluation.
func (p Pillars) DayMaster() int { return p.Day.Stem }

// DayMasterElement returns the element of the day master.
func (p Pillars) DayMasterElement() Element { return stemElements[p.Day.Stem] }

// Hangul renders the chart as "연주 월주 일주 시주" hangul pairs.
func (p Pillars) Hangul() string {
	return p.Year.Hangul() + " " + p.Month.Hangul() + " " + p.Day.Hangul() + " " + p.Hour.Hangul()
}

// stems returns the four stem indexes in year, month, day, hour order.
func (p Pillars) stems() [4]int {
	return [4]int{p.Year.Stem, p.Month.Stem, p.Day.Stem, p.Hour.Stem}
}

// branches returns the four branch indexes in year, month, day, hour order.
func (p Pillars) branches() [4]int {
	return [4]int{p.Year.Branch, p.Month.Branch, p.Day.Branch, p.Hour.Branch}
}

// CountElements tallies the five elements over all eight chart positions.
func CountElements(p Pillars) [5]int {
	var counts [5]int
	for _, s := range p.stems() {
		counts[stemElements[s]]++
	}
	for _, b := range p.branches() {
		counts[branchElements[b]]++
	}
	return counts
}

// mod returns a non-negative remainder for possibly negative a.
func mod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}
