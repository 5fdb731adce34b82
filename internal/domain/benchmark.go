package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultMethodology describes benchmarks without a dedicated text
const DefaultMethodology = "Aggregated marketplace data"

// PriceBounds limits accepted prices. A zero bound is open.
type PriceBounds struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// Contains reports whether price lies within the bounds
func (b PriceBounds) Contains(price decimal.Decimal) bool {
	if b.Min.IsPositive() && price.LessThan(b.Min) {
		return false
	}
	if b.Max.IsPositive() && price.GreaterThan(b.Max) {
		return false
	}
	return true
}

// BenchmarkConfig describes what to collect for one index
type BenchmarkConfig struct {
	Code            string      `json:"code" validate:"required"`
	Name            string      `json:"name" validate:"required"`
	Category        string      `json:"category"`
	Platforms       []Platform  `json:"platforms" validate:"required,min=1,dive,required"`
	SearchQueries   []string    `json:"searchQueries" validate:"required,min=1,dive,required"`
	PriceFilter     PriceBounds `json:"priceFilter"`
	ExcludeKeywords []string    `json:"excludeKeywords,omitempty"`
	ConditionFilter []Condition `json:"conditionFilter,omitempty"`
	Methodology     string      `json:"methodology,omitempty"`
	ExportName      string      `json:"exportName,omitempty"`
}

// Validate checks fields that struct tags cannot express
func (c BenchmarkConfig) Validate() error {
	seen := make(map[Platform]bool, len(c.Platforms))
	for _, p := range c.Platforms {
		if !p.Valid() {
			return fmt.Errorf("%w: %s: unknown platform %q", ErrInvalidBenchmark, c.Code, p)
		}
		// one collector must never run twice at once for the same benchmark
		if seen[p] {
			return fmt.Errorf("%w: %s: duplicate platform %q", ErrInvalidBenchmark, c.Code, p)
		}
		seen[p] = true
	}
	for _, cond := range c.ConditionFilter {
		if _, err := ParseCondition(string(cond)); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidBenchmark, c.Code, err)
		}
	}
	if c.PriceFilter.Min.IsNegative() || c.PriceFilter.Max.IsNegative() {
		return fmt.Errorf("%w: %s: negative price bound", ErrInvalidBenchmark, c.Code)
	}
	if c.PriceFilter.Max.IsPositive() && c.PriceFilter.Min.GreaterThan(c.PriceFilter.Max) {
		return fmt.Errorf("%w: %s: price min above max", ErrInvalidBenchmark, c.Code)
	}
	return nil
}

// ExportFileName returns the export bundle name without extension,
// e.g. ECI-SMP-300 -> smp-300.
func (c BenchmarkConfig) ExportFileName() string {
	if c.ExportName != "" {
		return c.ExportName
	}
	return strings.ToLower(strings.TrimPrefix(c.Code, "ECI-"))
}

// MethodologyText returns the methodology shown next to the chart
func (c BenchmarkConfig) MethodologyText() string {
	if c.Methodology != "" {
		return c.Methodology
	}
	return DefaultMethodology
}

// Excludes reports whether a listing title hits an excluded keyword
func (c BenchmarkConfig) Excludes(title string) bool {
	if title == "" || len(c.ExcludeKeywords) == 0 {
		return false
	}
	lower := strings.ToLower(title)
	for _, kw := range c.ExcludeKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// AllowsCondition reports whether listings in condition are wanted
func (c BenchmarkConfig) AllowsCondition(cond Condition) bool {
	if len(c.ConditionFilter) == 0 {
		return true
	}
	for _, allowed := range c.ConditionFilter {
		if allowed == cond {
			return true
		}
	}
	return false
}

// Accepts applies exclusion, condition and price filters to one observation
func (c BenchmarkConfig) Accepts(o PriceObservation) bool {
	return !c.Excludes(o.Title) && c.AllowsCondition(o.Condition) && c.PriceFilter.Contains(o.Price)
}

// PreferredCondition returns the condition to request from platforms that
// filter server side. Empty when several conditions are allowed.
func (c BenchmarkConfig) PreferredCondition() Condition {
	if len(c.ConditionFilter) == 1 {
		return c.ConditionFilter[0]
	}
	return ""
}

// SearchOptions builds per-query options for a platform returning at most
// maxResults items
func (c BenchmarkConfig) SearchOptions(maxResults int) SearchOptions {
	return SearchOptions{
		MaxResults: maxResults,
		Condition:  c.PreferredCondition(),
		PriceMin:   c.PriceFilter.Min,
		PriceMax:   c.PriceFilter.Max,
	}
}

// HasPlatform reports whether the benchmark targets p
func (c BenchmarkConfig) HasPlatform(p Platform) bool {
	for _, target := range c.Platforms {
		if target == p {
			return true
		}
	}
	return false
}

// BenchmarkSet is the read-only registry of configured benchmarks
type BenchmarkSet struct {
	order   []string
	configs map[string]BenchmarkConfig
}

// NewBenchmarkSet builds a registry, rejecting duplicate codes
func NewBenchmarkSet(configs []BenchmarkConfig) (*BenchmarkSet, error) {
	set := &BenchmarkSet{configs: make(map[string]BenchmarkConfig, len(configs))}
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := set.configs[cfg.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate code %s", ErrInvalidBenchmark, cfg.Code)
		}
		set.order = append(set.order, cfg.Code)
		set.configs[cfg.Code] = cfg
	}
	return set, nil
}

// Get returns the benchmark with the given code
func (s *BenchmarkSet) Get(code string) (BenchmarkConfig, error) {
	cfg, ok := s.configs[code]
	if !ok {
		return BenchmarkConfig{}, fmt.Errorf("%w: %s", ErrUnknownBenchmark, code)
	}
	return cfg, nil
}

// Codes returns benchmark codes in configuration order
func (s *BenchmarkSet) Codes() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// All returns every benchmark in configuration order
func (s *BenchmarkSet) All() []BenchmarkConfig {
	out := make([]BenchmarkConfig, 0, len(s.order))
	for _, code := range s.order {
		out = append(out, s.configs[code])
	}
	return out
}

// Len returns the number of benchmarks
func (s *BenchmarkSet) Len() int {
	return len(s.order)
}

// DefaultBenchmarks returns the built-in benchmark definitions
func DefaultBenchmarks() []BenchmarkConfig {
	return []BenchmarkConfig{
		{
			Code:      "ECI-SMP-300",
			Name:      "Budget Smartphone Price Index",
			Category:  "smartphones",
			Platforms: []Platform{PlatformAmazon, PlatformEbay, PlatformIdealo},
			SearchQueries: []string{
				"smartphone android",
				"smartphone 128gb",
				"xiaomi redmi",
				"samsung galaxy a",
				"motorola moto g",
				"realme smartphone",
				"poco smartphone",
				"xiaomi poco",
				"honor smartphone",
				"oppo smartphone",
			},
			PriceFilter: PriceBounds{Min: decimal.NewFromInt(100), Max: decimal.NewFromInt(300)},
			ExcludeKeywords: []string{
				"hülle", "case", "folie", "ladegerät", "kabel",
				"refurbished", "gebraucht", "defekt", "display", "akku",
			},
			ConditionFilter: []Condition{ConditionNew},
			Methodology:     "Weekly weighted average of listing prices for new smartphones under €300. Weighted by seller rating. Excludes refurbished and B-stock.",
			ExportName:      "smp-300",
		},
		{
			Code:      "ECI-SUP-VIT",
			Name:      "Supplement Price Index",
			Category:  "supplements",
			Platforms: []Platform{PlatformAmazon, PlatformEbay},
			SearchQueries: []string{
				"vitamin d3 tabletten",
				"vitamin d3 tropfen",
				"omega 3 kapseln",
				"omega 3 fischöl",
				"magnesium tabletten",
				"magnesium citrat",
				"zink tabletten",
				"vitamin c 1000mg",
				"vitamin b12",
				"vitamin b komplex",
				"multivitamin",
				"kreatin monohydrat",
				"whey protein isolat",
				"kollagen pulver",
			},
			PriceFilter:     PriceBounds{Min: decimal.NewFromInt(5), Max: decimal.NewFromInt(80)},
			ExcludeKeywords: []string{"probe", "sample", "mini", "einzeln", "1 stück"},
			ConditionFilter: []Condition{ConditionNew},
			Methodology:     "Weekly average of normalized prices for top supplement categories. Commercial sellers only. Prices normalized to standard dosage.",
			ExportName:      "sup-vit",
		},
		{
			Code:      "ECI-SNK-MEN",
			Name:      "Sneaker Supply Index",
			Category:  "sneakers",
			Platforms: []Platform{PlatformAmazon, PlatformEbay, PlatformIdealo},
			SearchQueries: []string{
				"herren sneaker",
				"nike air max herren",
				"nike air force herren",
				"adidas sneaker herren",
				"adidas superstar herren",
				"adidas stan smith",
				"puma sneaker herren",
				"new balance 574",
				"new balance 530",
				"converse chuck taylor",
				"vans old skool",
				"reebok classic",
			},
			PriceFilter:     PriceBounds{Min: decimal.NewFromInt(40), Max: decimal.NewFromInt(200)},
			ExcludeKeywords: []string{"kinder", "damen", "socken", "schnürsenkel", "einlagen"},
			ConditionFilter: []Condition{ConditionNew},
			Methodology:     "Weekly count of active fixed-price listings in men's sneaker category. Duplicate detection and exclusion of counterfeits.",
			ExportName:      "snk-men",
		},
	}
}
