// Package holders normalizes raw holder balances into a concentration
// profile.
package holders

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rcollins22/rugchekr/internal/address"
)

const (
	// DisplayLimit bounds TopHolders.
	DisplayLimit = 20
	// ConcentrationLimit is N in the top-N concentration metric.
	ConcentrationLimit = 10

	percentPlaces = 4
)

var hundred = decimal.NewFromInt(100)

// Balance is one raw record from a holder provider. Amount is an integer
// in the token's smallest unit, as text.
type Balance struct {
	Address string
	Amount  string
}

// Holder is one entry of the normalized list.
type Holder struct {
	Address    string  `json:"address"`
	Balance    string  `json:"balance"`
	Percentage float64 `json:"percentage"`
}

// Analysis is the holder concentration profile. The zero value means no
// data was available.
type Analysis struct {
	TotalHolders    int      `json:"totalHolders"`
	TopHolders      []Holder `json:"topHolders"`
	Top10Percentage float64  `json:"top10Percentage"`
	CreatorHolding  float64  `json:"creatorHolding"`
	CreatorAddress  string   `json:"creatorAddress,omitempty"`
}

// Empty returns the zero profile with a non-nil holder list.
func Empty(creator string) Analysis {
	return Analysis{TopHolders: []Holder{}, CreatorAddress: creator}
}

type entry struct {
	address string
	amount  decimal.Decimal
	pct     decimal.Decimal
}

// Analyze computes percentages against the hinted total supply when it is
// positive and at least the observed sum, otherwise against the observed
// sum. Records that do not parse or are not positive are ignored. Ties in
// balance keep provider order.
func Analyze(balances []Balance, totalSupplyHint string, creator string) Analysis {
	entries := make([]entry, 0, len(balances))
	sum := decimal.Zero
	for _, b := range balances {
		amt, err := decimal.NewFromString(b.Amount)
		if err != nil || !amt.IsPositive() {
			continue
		}
		entries = append(entries, entry{address: b.Address, amount: amt})
		sum = sum.Add(amt)
	}
	if len(entries) == 0 {
		return Empty(creator)
	}

	denom := sum
	if hint, err := decimal.NewFromString(totalSupplyHint); err == nil && hint.IsPositive() && hint.GreaterThanOrEqual(sum) {
		denom = hint
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].amount.GreaterThan(entries[j].amount)
	})

	creatorPct := decimal.Zero
	for i := range entries {
		entries[i].pct = entries[i].amount.Mul(hundred).Div(denom).Round(percentPlaces)
		if creator != "" && creatorPct.IsZero() && address.Equal(entries[i].address, creator) {
			creatorPct = entries[i].pct
		}
	}

	top10 := decimal.Zero
	for i := 0; i < len(entries) && i < ConcentrationLimit; i++ {
		top10 = top10.Add(entries[i].pct)
	}
	if top10.GreaterThan(hundred) {
		top10 = hundred
	}

	n := len(entries)
	if n > DisplayLimit {
		n = DisplayLimit
	}
	top := make([]Holder, n)
	for i := 0; i < n; i++ {
		top[i] = Holder{
			Address:    entries[i].address,
			Balance:    entries[i].amount.String(),
			Percentage: entries[i].pct.InexactFloat64(),
		}
	}

	return Analysis{
		TotalHolders:    len(entries),
		TopHolders:      top,
		Top10Percentage: top10.InexactFloat64(),
		CreatorHolding:  creatorPct.InexactFloat64(),
		CreatorAddress:  creator,
	}
}

// Share returns amount as a percentage of total, rounded like holder
// percentages. Unparseable or non-positive totals yield 0.
func Share(amount, total string) float64 {
	a, err := decimal.NewFromString(amount)
	if err != nil || !a.IsPositive() {
		return 0
	}
	t, err := decimal.NewFromString(total)
	if err != nil || !t.IsPositive() {
		return 0
	}
	return a.Mul(hundred).Div(t).Round(percentPlaces).InexactFloat64()
}

// ToRaw converts a human-unit amount ("1.5") to an integer string in the
// smallest unit for the given decimals, truncating any excess precision.
func ToRaw(amount string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "", err
	}
	return d.Shift(decimals).Truncate(0).String(), nil
}
