package traffic

import "white-traffic-console/internal/model"

// Summary labels, in display order.
const (
	LabelTotal     = "Total"
	LabelWhite     = "White"
	LabelFiltered  = "Filtered"
	LabelMalicious = "Malicious"
)

// TrendSeries is the time-series view-model: four series aligned on Labels.
type TrendSeries struct {
	Labels    []string
	Total     []int64
	White     []int64
	Filtered  []int64
	Malicious []int64
}

// Len returns the number of points in every series.
func (t TrendSeries) Len() int {
	return len(t.Labels)
}

// DeriveTrendSeries projects snapshot trends onto four aligned series.
func DeriveTrendSeries(s model.TrafficSnapshot) TrendSeries {
	n := len(s.Trends)
	ts := TrendSeries{
		Labels:    make([]string, n),
		Total:     make([]int64, n),
		White:     make([]int64, n),
		Filtered:  make([]int64, n),
		Malicious: make([]int64, n),
	}
	for i, p := range s.Trends {
		ts.Labels[i] = p.Time
		ts.Total[i] = p.Total
		ts.White[i] = p.White
		ts.Filtered[i] = p.Filtered
		ts.Malicious[i] = p.Malicious
	}
	return ts
}

// Slice is one wedge of a proportional chart.
type Slice struct {
	Label string
	Value int64
	// Share is Value/Sum, 0 when Sum is 0.
	Share float64
}

type Distribution struct {
	Slices []Slice
	Sum    int64
}

// DeriveSourceDistribution projects the per-source counts, in server order.
func DeriveSourceDistribution(s model.TrafficSnapshot) Distribution {
	slices := make([]Slice, len(s.Sources))
	for i, src := range s.Sources {
		slices[i] = Slice{Label: src.Source, Value: src.Count}
	}
	return distribution(slices)
}

// DeriveSummaryDistribution projects the white/filtered/malicious counters.
func DeriveSummaryDistribution(s model.TrafficSnapshot) Distribution {
	return distribution([]Slice{
		{Label: LabelWhite, Value: s.White},
		{Label: LabelFiltered, Value: s.Filtered},
		{Label: LabelMalicious, Value: s.Malicious},
	})
}

func distribution(slices []Slice) Distribution {
	var sum int64
	for _, sl := range slices {
		if sl.Value > 0 {
			sum += sl.Value
		}
	}
	if sum > 0 {
		for i := range slices {
			if slices[i].Value > 0 {
				slices[i].Share = float64(slices[i].Value) / float64(sum)
			}
		}
	}
	return Distribution{Slices: slices, Sum: sum}
}

// Summary is the four headline counters as supplied by the backend.
type Summary struct {
	Total     int64
	White     int64
	Filtered  int64
	Malicious int64
}

func DeriveSummary(s model.TrafficSnapshot) Summary {
	return Summary{
		Total:     s.Total,
		White:     s.White,
		Filtered:  s.Filtered,
		Malicious: s.Malicious,
	}
}
