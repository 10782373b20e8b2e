package parsers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hmadan24/wealth-advisor/internal/models"
	"github.com/hmadan24/wealth-advisor/internal/portfolio"
)

// usdToINR converts Vested statement figures to INR for consistent display.
// TODO: fetch the live rate once a quote source is wired up.
const usdToINR = 84.50

var (
	usEquityMarkers = []string{"vested", "vf securities", "drivewealth"}

	accountNamePattern = regexp.MustCompile(`(?i)account\s+name\s*[:\-]?\s*([A-Za-z][A-Za-z .]{2,60})`)
	tickerPattern      = regexp.MustCompile(`^[A-Z]{1,5}$`)
)

// IsUSEquityPDF reports whether the document is a Vested / VF Securities
// account statement. Detection never fails; an unreadable file is simply
// not a US-equity statement.
func IsUSEquityPDF(path, password string) bool {
	text, err := ExtractText(path, password)
	if err != nil {
		return false
	}
	lower := strings.ToLower(text)
	for _, marker := range usEquityMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ParseUSEquity parses a Vested / VF Securities statement into a normalized
// segment. Values are converted from USD to INR.
func ParseUSEquity(path, password string) (models.Segment, error) {
	text, err := ExtractText(path, password)
	if err != nil {
		return models.Segment{}, fmt.Errorf("failed to parse US equity file: %w", err)
	}
	return parseUSEquityText(text), nil
}

func parseUSEquityText(text string) models.Segment {
	segment := models.Segment{Holdings: []models.Holding{}}

	if m := accountNamePattern.FindStringSubmatch(text); m != nil {
		segment.Investor.Name = strings.TrimSpace(m[1])
	}

	for _, line := range strings.Split(text, "\n") {
		if h, ok := parseStockLine(strings.TrimSpace(line)); ok {
			segment.Holdings = append(segment.Holdings, h)
		}
	}

	segment.Summary, _, _ = portfolio.Recompute(segment.Holdings)
	return segment
}

// parseStockLine reads one holdings-table row:
//
//	Description | Symbol | Quantity | Unit Cost | Total Cost | Market Price | Market Value | Gain/(Loss)
//
// The symbol is the last non-numeric token before the numeric run.
func parseStockLine(line string) (models.Holding, bool) {
	tokens := fields(line)
	if len(tokens) < 6 {
		return models.Holding{}, false
	}

	// Locate the start of the trailing numeric run.
	numStart := len(tokens)
	for numStart > 0 && isNumeric(tokens[numStart-1]) {
		numStart--
	}

	numbers := make([]float64, 0, len(tokens)-numStart)
	for _, tok := range tokens[numStart:] {
		numbers = append(numbers, parseNumber(tok))
	}
	if len(numbers) < 5 || numStart < 2 {
		return models.Holding{}, false
	}

	symbol := tokens[numStart-1]
	if !tickerPattern.MatchString(symbol) {
		return models.Holding{}, false
	}

	description := strings.Join(tokens[:numStart-1], " ")
	quantity := numbers[0]
	totalCost := numbers[2]
	marketPrice := numbers[3]
	marketValue := numbers[4]

	if quantity <= 0 || marketValue <= 0 {
		return models.Holding{}, false
	}

	h := models.Holding{
		SchemeName:     fmt.Sprintf("%s (%s)", description, symbol),
		ISIN:           symbol,
		AssetClass:     models.AssetClassUSEquity,
		AMC:            "Vested",
		Folio:          "Vested",
		Units:          quantity,
		NAV:            marketPrice * usdToINR,
		CurrentValue:   marketValue * usdToINR,
		InvestedAmount: totalCost * usdToINR,
	}
	if h.InvestedAmount > 0 {
		h.AbsoluteReturn = h.CurrentValue - h.InvestedAmount
		h.PercentageReturn = h.AbsoluteReturn / h.InvestedAmount * 100
	}
	return h, true
}
