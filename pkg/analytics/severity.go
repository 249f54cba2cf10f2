package analytics

import "sort"

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"

	HighThreshold   = 0.7
	MediumThreshold = 0.4
)

// BucketIntensity maps an emotion intensity in [0,1] to a severity bucket.
func BucketIntensity(intensity float64) Severity {
	switch {
	case intensity >= HighThreshold:
		return SeverityHigh
	case intensity >= MediumThreshold:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

type SeverityCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

func (c *SeverityCounts) Add(intensity float64) {
	switch BucketIntensity(intensity) {
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	default:
		c.Low++
	}
}

func (c SeverityCounts) Total() int {
	return c.High + c.Medium + c.Low
}

type SeverityBreakdown struct {
	Counts        SeverityCounts `json:"counts"`
	Total         int            `json:"total"`
	HighPercent   int            `json:"high_percent"`
	MediumPercent int            `json:"medium_percent"`
	LowPercent    int            `json:"low_percent"`
}

// Breakdown converts counts to whole percentages. Rounding uses the
// largest remainder so a non-empty breakdown always sums to exactly 100.
// An empty breakdown is all zeros.
func Breakdown(counts SeverityCounts) SeverityBreakdown {
	total := counts.Total()
	out := SeverityBreakdown{Counts: counts, Total: total}
	if total == 0 {
		return out
	}

	raw := []int{counts.High, counts.Medium, counts.Low}
	pct := largestRemainder(raw, total)
	out.HighPercent, out.MediumPercent, out.LowPercent = pct[0], pct[1], pct[2]
	return out
}

func largestRemainder(values []int, total int) []int {
	type part struct {
		idx       int
		remainder int
	}

	result := make([]int, len(values))
	parts := make([]part, len(values))
	assigned := 0
	for i, v := range values {
		scaled := v * 100
		result[i] = scaled / total
		parts[i] = part{idx: i, remainder: scaled % total}
		assigned += result[i]
	}

	sort.SliceStable(parts, func(a, b int) bool {
		return parts[a].remainder > parts[b].remainder
	})
	for i := 0; assigned < 100; i++ {
		result[parts[i%len(parts)].idx]++
		assigned++
	}
	return result
}
