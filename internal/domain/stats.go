package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PriceStats summarizes a set of positive prices
type PriceStats struct {
	Count   int             `json:"count"`
	Average decimal.Decimal `json:"avgPrice"`
	Median  decimal.Decimal `json:"medianPrice"`
	Min     decimal.Decimal `json:"minPrice"`
	Max     decimal.Decimal `json:"maxPrice"`
}

var two = decimal.NewFromInt(2)

// ComputeStats summarizes the positive prices in values.
// It reports false when no positive price is present.
func ComputeStats(values []decimal.Decimal) (PriceStats, bool) {
	prices := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		if v.IsPositive() {
			prices = append(prices, v)
		}
	}
	if len(prices) == 0 {
		return PriceStats{}, false
	}

	sort.Slice(prices, func(i, j int) bool {
		return prices[i].LessThan(prices[j])
	})

	sum := decimal.Zero
	for _, p := range prices {
		sum = sum.Add(p)
	}

	n := len(prices)
	mid := n / 2
	median := prices[mid]
	if n%2 == 0 {
		median = prices[mid-1].Add(prices[mid]).Div(two)
	}

	return PriceStats{
		Count:   n,
		Average: sum.Div(decimal.NewFromInt(int64(n))).Round(2),
		Median:  median,
		Min:     prices[0],
		Max:     prices[n-1],
	}, true
}
