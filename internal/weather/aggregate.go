package weather

import "math"

// Summary condenses a projected series for chart headers.
type Summary struct {
	Count int     `json:"count"`
	Nulls int     `json:"nulls"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	From  string  `json:"from,omitempty"`
	To    string  `json:"to,omitempty"`
}

// Summarize averages the non-null points of s. Count is zero when there are
// none, in which case Min/Max/Mean are zero as well.
func Summarize(s Series) Summary {
	var sum Summary
	if len(s.Labels) > 0 {
		sum.From = s.Labels[0]
		sum.To = s.Labels[len(s.Labels)-1]
	}

	lo, hi, total := math.Inf(1), math.Inf(-1), 0.0
	for _, v := range s.Values {
		if v == nil {
			sum.Nulls++
			continue
		}
		sum.Count++
		total += *v
		if *v < lo {
			lo = *v
		}
		if *v > hi {
			hi = *v
		}
	}

	if sum.Count == 0 {
		return sum
	}
	sum.Min = lo
	sum.Max = hi
	sum.Mean = total / float64(sum.Count)
	return sum
}
