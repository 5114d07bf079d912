// Package denom classifies cash denominations into banknote and coin
// buckets and aggregates declared values per bucket.
package denom

import (
	"github.com/shopspring/decimal"

	"cash-interchange-service/internal/models"
)

// Bucket is the classification target
type Bucket int

const (
	Banknote Bucket = iota
	Coin
)

// String returns the bucket name
func (b Bucket) String() string {
	if b == Coin {
		return "coin"
	}
	return "banknote"
}

var (
	// banknoteThreshold is the smallest unit value printed on paper.
	banknoteThreshold = decimal.NewFromInt(2000)

	// coinCorrectionFloor marks coin rows whose unit value arrives scaled
	// by 100. One partner's coin export reports 15000 for a 150 coin.
	coinCorrectionFloor = decimal.NewFromInt(10000)

	oneHundred = decimal.NewFromInt(100)
)

// Classify returns the bucket for a unit value plus the corrected unit
// value. Coin-flagged units at or above 10000 are divided by 100 before
// classification.
func Classify(unit decimal.Decimal, coinFlagged bool) (Bucket, decimal.Decimal) {
	if coinFlagged && unit.GreaterThanOrEqual(coinCorrectionFloor) {
		unit = unit.Div(oneHundred)
	}

	if unit.GreaterThanOrEqual(banknoteThreshold) {
		return Banknote, unit
	}
	return Coin, unit
}

// KitType classifies pre-assembled kits. Kits are bucketed by configuration,
// not by unit value.
type KitType string

const (
	KitBanknote KitType = "banknote"
	KitCoin     KitType = "coin"
	KitMixed    KitType = "mixed"
)

// Bucket returns the bucket a kit's value belongs to. Mixed kits count as
// banknotes.
func (k KitType) Bucket() Bucket {
	if k == KitCoin {
		return Coin
	}
	return Banknote
}

// KitSpec describes one configured kit: its unit value and its type
type KitSpec struct {
	Name string          `json:"name"`
	Unit decimal.Decimal `json:"unit"`
	Type KitType         `json:"type"`
}

// Totals accumulates declared values per bucket
type Totals struct {
	Banknotes decimal.Decimal
	Coins     decimal.Decimal
}

// NewTotals returns zeroed totals
func NewTotals() Totals {
	return Totals{Banknotes: decimal.Zero, Coins: decimal.Zero}
}

// Add accumulates a value into the given bucket
func (t Totals) Add(bucket Bucket, value decimal.Decimal) Totals {
	if bucket == Coin {
		t.Coins = t.Coins.Add(value)
	} else {
		t.Banknotes = t.Banknotes.Add(value)
	}
	return t
}

// Total returns banknotes plus coins
func (t Totals) Total() decimal.Decimal {
	return t.Banknotes.Add(t.Coins)
}

// IsZero reports whether both buckets are zero
func (t Totals) IsZero() bool {
	return t.Banknotes.IsZero() && t.Coins.IsZero()
}

// Aggregate classifies every denomination slot of a record and sums
// quantity times corrected unit value into the two buckets
func Aggregate(denoms []models.DenominationCount) Totals {
	totals := NewTotals()

	for _, d := range denoms {
		if d.Quantity.IsZero() || d.Unit.IsZero() {
			continue
		}
		bucket, unit := Classify(d.Unit, d.Coin)
		totals = totals.Add(bucket, d.Quantity.Mul(unit))
	}

	return totals
}

// AggregateKits sums kit quantities times configured unit values into the
// bucket the kit type dictates
func AggregateKits(totals Totals, quantity int, spec KitSpec) Totals {
	if quantity <= 0 || spec.Unit.IsZero() {
		return totals
	}
	value := spec.Unit.Mul(decimal.NewFromInt(int64(quantity)))
	return totals.Add(spec.Type.Bucket(), value)
}
