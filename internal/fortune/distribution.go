package fortune

import (
	"fmt"
	"strings"

	"github.com/haneul-labs/saju-engine/internal/saju"
)

// ElementDistribution renders the five-element tally of a chart as the
// bar block the first reading opens with, one line per element:
//
//	목 ███ 3
//	화 █ 1
//	...
//
// The counts always sum to 8 (four stems plus four branches).
func ElementDistribution(p saju.Pillars) string {
	counts := saju.CountElements(p)
	var b strings.Builder
	for e := 0; e < 5; e++ {
		bar := strings.Repeat("█", counts[e])
		if counts[e] == 0 {
			bar = "·"
		}
		fmt.Fprintf(&b, "%s %s %d\n", saju.Element(e).Korean(), bar, counts[e])
	}
	return strings.TrimRight(b.String(), "\n")
}
