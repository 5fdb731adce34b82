package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used for history keys
const DateLayout = "2006-01-02"

// AggregatedPoint summarizes one platform's prices for one benchmark and day
type AggregatedPoint struct {
	Date         string          `json:"date"`
	Platform     Platform        `json:"platform"`
	Category     string          `json:"category"`
	AveragePrice decimal.Decimal `json:"averagePrice"`
	MedianPrice  decimal.Decimal `json:"medianPrice"`
	MinPrice     decimal.Decimal `json:"minPrice"`
	MaxPrice     decimal.Decimal `json:"maxPrice"`
	SampleSize   int             `json:"sampleSize"`
}

// Key returns the history key of the point
func (p AggregatedPoint) Key() HistoryKey {
	return HistoryKey{Date: p.Date, Platform: p.Platform}
}

// HistoryKey identifies a point within a benchmark history
type HistoryKey struct {
	Date     string
	Platform Platform
}

func (k HistoryKey) String() string {
	return k.Date + "_" + string(k.Platform)
}

// ParseHistoryKey parses keys of the form 2026-03-01_ebay
func ParseHistoryKey(s string) (HistoryKey, error) {
	date, platform, ok := strings.Cut(s, "_")
	if !ok || date == "" || platform == "" {
		return HistoryKey{}, fmt.Errorf("malformed history key %q", s)
	}
	return HistoryKey{Date: date, Platform: Platform(platform)}, nil
}

// History holds the latest aggregated point per (date, platform) for one benchmark
type History struct {
	Benchmark string
	points    map[HistoryKey]AggregatedPoint
}

// NewHistory creates an empty history
func NewHistory(benchmark string) *History {
	return &History{
		Benchmark: benchmark,
		points:    make(map[HistoryKey]AggregatedPoint),
	}
}

// Upsert stores p under its key and reports whether an entry was replaced
func (h *History) Upsert(p AggregatedPoint) bool {
	if h.points == nil {
		h.points = make(map[HistoryKey]AggregatedPoint)
	}
	_, replaced := h.points[p.Key()]
	h.points[p.Key()] = p
	return replaced
}

// Get returns the point stored under key
func (h *History) Get(key HistoryKey) (AggregatedPoint, bool) {
	p, ok := h.points[key]
	return p, ok
}

// Len returns the number of stored points
func (h *History) Len() int {
	return len(h.points)
}

// Empty reports whether the history holds no points
func (h *History) Empty() bool {
	return len(h.points) == 0
}

// Points returns all points ordered by date, then platform
func (h *History) Points() []AggregatedPoint {
	out := make([]AggregatedPoint, 0, len(h.points))
	for _, p := range h.points {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Platform.Rank() < out[j].Platform.Rank()
	})
	return out
}

// Platforms returns the platforms present in the history in export order
func (h *History) Platforms() []Platform {
	seen := make(map[Platform]struct{})
	for key := range h.points {
		seen[key.Platform] = struct{}{}
	}
	out := make([]Platform, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank() != out[j].Rank() {
			return out[i].Rank() < out[j].Rank()
		}
		return out[i] < out[j]
	})
	return out
}

// Series returns the points of one platform sorted by date
func (h *History) Series(platform Platform) []AggregatedPoint {
	var out []AggregatedPoint
	for key, p := range h.points {
		if key.Platform == platform {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

// LatestDate returns the most recent date in the history
func (h *History) LatestDate() string {
	latest := ""
	for key := range h.points {
		if key.Date > latest {
			latest = key.Date
		}
	}
	return latest
}

// MarshalJSON writes the history as an object keyed by "<date>_<platform>"
func (h *History) MarshalJSON() ([]byte, error) {
	out := make(map[string]AggregatedPoint, len(h.points))
	for key, p := range h.points {
		out[key.String()] = p
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the keyed object form. Values may also be arrays of
// points, as written by older collectors; the last entry per key wins.
func (h *History) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	h.points = make(map[HistoryKey]AggregatedPoint, len(raw))
	for k, v := range raw {
		key, err := ParseHistoryKey(k)
		if err != nil {
			return err
		}

		var points []AggregatedPoint
		if trimmed := bytes.TrimSpace(v); len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &points); err != nil {
				return fmt.Errorf("history entry %s: %w", k, err)
			}
		} else {
			var p AggregatedPoint
			if err := json.Unmarshal(trimmed, &p); err != nil {
				return fmt.Errorf("history entry %s: %w", k, err)
			}
			points = append(points, p)
		}

		for _, p := range points {
			if p.Date == "" {
				p.Date = key.Date
			}
			if p.Platform == "" {
				p.Platform = key.Platform
			}
			h.points[p.Key()] = p
		}
	}
	return nil
}
