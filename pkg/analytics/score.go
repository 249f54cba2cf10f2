package analytics

import "strings"

// ToneWeight is the share of the session score given to tone balance when
// at least one row carries a tone.
const ToneWeight = 0.3

var (
	positiveTones = map[string]bool{
		"positive": true, "supportive": true, "hopeful": true,
		"calm": true, "warm": true, "encouraging": true, "grateful": true,
	}
	negativeTones = map[string]bool{
		"negative": true, "hostile": true, "anxious": true, "distressed": true,
		"angry": true, "sad": true, "dismissive": true,
	}
)

// ScoreRow is the slice of an emotion log the score needs.
type ScoreRow struct {
	AlignmentScore *float64
	Tone           string
}

type SessionScore struct {
	Rows             int     `json:"rows"`
	AlignmentRows    int     `json:"alignment_rows"`
	TonedRows        int     `json:"toned_rows"`
	AverageAlignment float64 `json:"average_alignment"`
	ToneBalance      float64 `json:"tone_balance"`
	ToneWeight       float64 `json:"tone_weight"`
	Score            float64 `json:"score"`
}

// ScoreSession blends the average alignment score with a tone balance in
// [0,1] (positive = 1, neutral = 0.5, negative = 0). Rows without a tone do
// not count toward the balance, and when no row has one the tone term has
// zero weight.
func ScoreSession(rows []ScoreRow) SessionScore {
	out := SessionScore{Rows: len(rows)}
	if len(rows) == 0 {
		return out
	}

	var alignSum, toneSum float64
	for _, r := range rows {
		if r.AlignmentScore != nil {
			alignSum += *r.AlignmentScore
			out.AlignmentRows++
		}
		tone := strings.ToLower(strings.TrimSpace(r.Tone))
		if tone == "" {
			continue
		}
		out.TonedRows++
		switch {
		case positiveTones[tone]:
			toneSum += 1
		case negativeTones[tone]:
		default:
			toneSum += 0.5
		}
	}

	if out.AlignmentRows > 0 {
		out.AverageAlignment = alignSum / float64(out.AlignmentRows)
	}
	if out.TonedRows > 0 {
		out.ToneBalance = toneSum / float64(out.TonedRows)
	}

	switch {
	case out.TonedRows == 0:
		out.Score = out.AverageAlignment
	case out.AlignmentRows == 0:
		out.ToneWeight = 1
		out.Score = out.ToneBalance
	default:
		out.ToneWeight = ToneWeight
		out.Score = (1-ToneWeight)*out.AverageAlignment + ToneWeight*out.ToneBalance
	}
	return out
}
