package portfolio

import (
	"testing"

	"github.com/hmadan24/wealth-advisor/internal/models"
)

func TestClassifyKeywords(t *testing.T) {
	tests := []struct {
		name   string
		scheme string
		want   models.AssetClass
	}{
		{"large cap", "HDFC Large Cap Fund - Direct Growth", models.AssetClassEquity},
		{"small cap", "Axis Small Cap Fund", models.AssetClassEquity},
		{"elss", "Mirae Asset Tax Saver Fund", models.AssetClassEquity},
		{"index", "UTI Nifty 50 Index Fund", models.AssetClassEquity},
		{"liquid", "ICICI Prudential Liquid Fund", models.AssetClassDebt},
		{"gilt", "SBI Magnum Gilt Fund", models.AssetClassDebt},
		{"corporate bond", "HDFC Corporate Bond Fund", models.AssetClassDebt},
		{"balanced advantage", "SBI Balanced Advantage Fund", models.AssetClassHybrid},
		{"arbitrage", "Kotak Arbitrage Fund", models.AssetClassHybrid},
		{"gold", "SBI Gold Fund", models.AssetClassGold},
		{"silver", "Nippon India Silver Fund", models.AssetClassGold},
		{"unknown", "Unknown XYZ Scheme", models.AssetClassOther},
		{"empty", "", models.AssetClassOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.scheme, "")
			if got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.scheme, got, tt.want)
			}
		})
	}
}

func TestClassifyTypeHintWins(t *testing.T) {
	// The type hint is authoritative even when the name suggests otherwise.
	if got := Classify("Something Liquid Plan", "EQUITY"); got != models.AssetClassEquity {
		t.Errorf("equity hint: got %s, want equity", got)
	}
	if got := Classify("Bluechip Opportunities", "Debt Scheme"); got != models.AssetClassDebt {
		t.Errorf("debt hint: got %s, want debt", got)
	}
	if got := Classify("Random Name", "Hybrid Scheme"); got != models.AssetClassHybrid {
		t.Errorf("hybrid hint: got %s, want hybrid", got)
	}
}

func TestClassifyEquityBeatsLaterCategories(t *testing.T) {
	// Names matching multiple categories resolve to the first category in
	// priority order. "Equity Savings" matches both equity and hybrid.
	if got := Classify("ICICI Prudential Equity Savings Fund", ""); got != models.AssetClassEquity {
		t.Errorf("got %s, want equity", got)
	}
}

func TestClassifyGrowthFundFallback(t *testing.T) {
	if got := Classify("XYZ Growth Fund", ""); got != models.AssetClassEquity {
		t.Errorf("got %s, want equity", got)
	}
	// "growth" alone without "fund" stays unclassified.
	if got := Classify("XYZ Growth Plan", ""); got != models.AssetClassOther {
		t.Errorf("got %s, want other", got)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		if got := Classify("HDFC Balanced Advantage Fund", ""); got != models.AssetClassHybrid {
			t.Fatalf("iteration %d: got %s, want hybrid", i, got)
		}
	}
}
