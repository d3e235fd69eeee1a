package model

import (
	"fmt"
	"time"

	prommodel "github.com/prometheus/common/model"
)

// TimeRange selects the window of a traffic snapshot.
type TimeRange string

const (
	Range1h  TimeRange = "1h"
	Range24h TimeRange = "24h"
	Range7d  TimeRange = "7d"
	Range30d TimeRange = "30d"

	DefaultRange = Range24h
)

// TimeRanges lists the supported ranges in display order.
var TimeRanges = []TimeRange{Range1h, Range24h, Range7d, Range30d}

// ParseTimeRange validates a range selector.
func ParseTimeRange(s string) (TimeRange, error) {
	for _, r := range TimeRanges {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unsupported time range %q (valid: 1h, 24h, 7d, 30d)", s)
}

// Duration converts the range into a time.Duration.
func (r TimeRange) Duration() (time.Duration, error) {
	d, err := prommodel.ParseDuration(string(r))
	if err != nil {
		return 0, fmt.Errorf("failed to parse time range %q: %w", r, err)
	}
	return time.Duration(d), nil
}

// TrafficSnapshot is a point-in-time read of aggregate and time-series counters.
// The headline counters are supplied by the backend and are not re-derived
// from Trends.
type TrafficSnapshot struct {
	Total     int64         `json:"total"`
	White     int64         `json:"white"`
	Filtered  int64         `json:"filtered"`
	Malicious int64         `json:"malicious"`
	Trends    []TrendPoint  `json:"trends"`
	Sources   []SourceCount `json:"sources"`
}

type TrendPoint struct {
	Time      string `json:"time"`
	Total     int64  `json:"total"`
	White     int64  `json:"white"`
	Filtered  int64  `json:"filtered"`
	Malicious int64  `json:"malicious"`
}

type SourceCount struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

// Clone returns a deep copy so callers cannot alias store state.
func (s TrafficSnapshot) Clone() TrafficSnapshot {
	out := s
	out.Trends = append([]TrendPoint(nil), s.Trends...)
	out.Sources = append([]SourceCount(nil), s.Sources...)
	return out
}
