package analysis

import "github.com/phrazzld/docstream/internal/domain"

// band is an inclusive range of visible progress owned by one stage.
type band struct {
	lo, hi int
}

// Bands are disjoint and ordered so the visible progress of a task only moves forward.
var bands = map[domain.Status]band{
	domain.StatusUploading:  {5, 34},
	domain.StatusParsing:    {35, 78},
	domain.StatusProcessing: {35, 78},
	domain.StatusExtracting: {79, 90},
	domain.StatusAnalyzing:  {91, 99},
	domain.StatusComplete:   {100, 100},
}

// Remap maps a stage's own 0..100 percent into its visible band.
func Remap(stage domain.Status, raw int) int {
	return RemapRange(stage, raw, 0, 100)
}

// RemapRange maps raw, clamped to [rawLo, rawHi], linearly into the stage's
// band using integer arithmetic. Stages without a band map to 0.
func RemapRange(stage domain.Status, raw, rawLo, rawHi int) int {
	b, ok := bands[stage]
	if !ok {
		return 0
	}
	if rawHi <= rawLo {
		return b.lo
	}
	if raw < rawLo {
		raw = rawLo
	}
	if raw > rawHi {
		raw = rawHi
	}
	return b.lo + (raw-rawLo)*(b.hi-b.lo)/(rawHi-rawLo)
}

// BandStart returns the lowest visible progress of a stage.
func BandStart(stage domain.Status) int {
	return bands[stage].lo
}

// BandEnd returns the highest visible progress of a stage.
func BandEnd(stage domain.Status) int {
	return bands[stage].hi
}
