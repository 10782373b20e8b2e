package portfolio

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hmadan24/wealth-advisor/internal/models"
)

type bucket struct {
	value decimal.Decimal
	count int
}

// Recompute derives the summary and both allocation breakdowns purely from
// the holdings list. Pure and idempotent: running it twice on unchanged
// holdings yields identical output. Summation runs at full decimal precision;
// rounding to 2dp happens only at output.
func Recompute(holdings []models.Holding) (models.PortfolioSummary, []models.AssetAllocation, []models.AMCAllocation) {
	totalValue := decimal.Zero
	totalInvested := decimal.Zero
	assetBuckets := map[string]*bucket{}
	amcBuckets := map[string]*bucket{}
	folios := map[string]struct{}{}

	for _, h := range holdings {
		value := decimal.NewFromFloat(h.CurrentValue)
		totalValue = totalValue.Add(value)
		totalInvested = totalInvested.Add(decimal.NewFromFloat(h.InvestedAmount))

		class := h.AssetClass.DisplayName()
		if b, ok := assetBuckets[class]; ok {
			b.value = b.value.Add(value)
			b.count++
		} else {
			assetBuckets[class] = &bucket{value: value, count: 1}
		}

		amc := h.AMC
		if amc == "" {
			amc = "Unknown"
		}
		if b, ok := amcBuckets[amc]; ok {
			b.value = b.value.Add(value)
			b.count++
		} else {
			amcBuckets[amc] = &bucket{value: value, count: 1}
		}

		if h.Folio != "" {
			folios[h.Folio] = struct{}{}
		}
	}

	totalReturn := totalValue.Sub(totalInvested)
	returnPct := decimal.Zero
	if totalInvested.IsPositive() {
		returnPct = totalReturn.Div(totalInvested).Mul(decimal.NewFromInt(100))
	}

	summary := models.PortfolioSummary{
		TotalValue:       round2(totalValue),
		TotalInvested:    round2(totalInvested),
		TotalReturn:      round2(totalReturn),
		ReturnPercentage: round2(returnPct),
		SchemeCount:      len(holdings),
		FolioCount:       len(folios),
	}

	assetAllocation := make([]models.AssetAllocation, 0, len(assetBuckets))
	for class, b := range assetBuckets {
		assetAllocation = append(assetAllocation, models.AssetAllocation{
			AssetClass:  class,
			Value:       round2(b.value),
			Percentage:  percentageOf(b.value, totalValue),
			SchemeCount: b.count,
		})
	}
	sort.Slice(assetAllocation, func(i, j int) bool {
		if assetAllocation[i].Value != assetAllocation[j].Value {
			return assetAllocation[i].Value > assetAllocation[j].Value
		}
		return assetAllocation[i].AssetClass < assetAllocation[j].AssetClass
	})

	amcAllocation := make([]models.AMCAllocation, 0, len(amcBuckets))
	for amc, b := range amcBuckets {
		amcAllocation = append(amcAllocation, models.AMCAllocation{
			AMC:         amc,
			Value:       round2(b.value),
			Percentage:  percentageOf(b.value, totalValue),
			SchemeCount: b.count,
		})
	}
	sort.Slice(amcAllocation, func(i, j int) bool {
		if amcAllocation[i].Value != amcAllocation[j].Value {
			return amcAllocation[i].Value > amcAllocation[j].Value
		}
		return amcAllocation[i].AMC < amcAllocation[j].AMC
	})

	return summary, assetAllocation, amcAllocation
}

// percentageOf returns value/total × 100 rounded to 2dp, or 0 when total is 0.
func percentageOf(value, total decimal.Decimal) float64 {
	if !total.IsPositive() {
		return 0
	}
	return round2(value.Div(total).Mul(decimal.NewFromInt(100)))
}

func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
