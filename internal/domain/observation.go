package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is assumed when a platform does not report one
const DefaultCurrency = "EUR"

// Condition is the item condition of a listing
type Condition string

const (
	ConditionNew         Condition = "new"
	ConditionRefurbished Condition = "refurbished"
	ConditionUsed        Condition = "used"
)

// ParseCondition converts a string into a condition
func ParseCondition(s string) (Condition, error) {
	switch c := Condition(strings.ToLower(strings.TrimSpace(s))); c {
	case ConditionNew, ConditionRefurbished, ConditionUsed:
		return c, nil
	default:
		return "", fmt.Errorf("unknown condition %q", s)
	}
}

// PriceObservation is one listing price captured from a platform.
// Values are copied, never updated in place; CollectedAt is set by the
// collector when the listing is read.
type PriceObservation struct {
	ProductID         string           `json:"productId"`
	Platform          Platform         `json:"platform"`
	Title             string           `json:"title,omitempty"`
	Price             decimal.Decimal  `json:"price"`
	Currency          string           `json:"currency"`
	Shipping          *decimal.Decimal `json:"shipping,omitempty"`
	Seller            string           `json:"seller,omitempty"`
	SellerRating      *float64         `json:"sellerRating,omitempty"`
	SellerReviewCount *int             `json:"sellerReviewCount,omitempty"`
	Rating            *float64         `json:"rating,omitempty"`
	Condition         Condition        `json:"condition"`
	InStock           bool             `json:"inStock"`
	URL               string           `json:"url"`
	CollectedAt       time.Time        `json:"collectedAt"`
}

// Priced reports whether the observation carries a usable price
func (o PriceObservation) Priced() bool {
	return o.Price.IsPositive()
}

// Validate rejects negative prices and missing identity fields
func (o PriceObservation) Validate() error {
	if strings.TrimSpace(o.ProductID) == "" {
		return ErrInvalidProduct
	}
	if o.Price.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, o.Price)
	}
	return nil
}

// SortOrder is the preferred result ordering of a search
type SortOrder string

const (
	SortRelevance SortOrder = "relevance"
	SortPrice     SortOrder = "price"
	SortDate      SortOrder = "date"
)

// SearchOptions narrows a single platform search.
// Zero price bounds mean unbounded.
type SearchOptions struct {
	MaxResults int
	Condition  Condition
	PriceMin   decimal.Decimal
	PriceMax   decimal.Decimal
	SortBy     SortOrder
}

// DeduplicateLowest keeps one observation per product id, the cheapest one.
// The first occurrence of each id fixes its position in the output.
func DeduplicateLowest(observations []PriceObservation) []PriceObservation {
	index := make(map[string]int, len(observations))
	out := make([]PriceObservation, 0, len(observations))

	for _, o := range observations {
		if i, seen := index[o.ProductID]; seen {
			if o.Price.LessThan(out[i].Price) {
				out[i] = o
			}
			continue
		}
		index[o.ProductID] = len(out)
		out = append(out, o)
	}

	return out
}

// PricedValues returns the positive prices of the observations
func PricedValues(observations []PriceObservation) []decimal.Decimal {
	prices := make([]decimal.Decimal, 0, len(observations))
	for _, o := range observations {
		if o.Priced() {
			prices = append(prices, o.Price)
		}
	}
	return prices
}
