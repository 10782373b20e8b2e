package parsers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hmadan24/wealth-advisor/internal/models"
	"github.com/hmadan24/wealth-advisor/internal/portfolio"
)

// Mutual fund ISINs start with INF; demat equity ISINs with INE.
var (
	fundISINPattern   = regexp.MustCompile(`\bINF[A-Z0-9]{9}\b`)
	equityISINPattern = regexp.MustCompile(`\bINE[A-Z0-9]{9}\b`)
	folioPattern      = regexp.MustCompile(`(?i)folio\s*(?:no\.?|number)?\s*[:\-]?\s*([A-Z0-9/\-]+)`)
	investorPattern   = regexp.MustCompile(`(?i)(?:statement\s+for|account\s+holder|name)\s*[:\-]?\s*([A-Za-z][A-Za-z .]{2,60})`)
	emailPattern      = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

// Known fund-house prefixes used to derive the AMC from a scheme name.
var amcPrefixes = []string{
	"HDFC", "ICICI Prudential", "ICICI", "SBI", "Axis", "Kotak", "Aditya Birla",
	"Birla", "Nippon", "UTI", "DSP", "Franklin", "Mirae", "Tata", "Motilal Oswal",
	"Parag Parikh", "PPFAS", "Quant", "Canara Robeco", "Edelweiss", "Invesco",
	"Bandhan", "IDFC", "L&T", "Sundaram", "HSBC", "Baroda", "PGIM",
}

// ParseCAS parses a consolidated account statement PDF into a normalized
// segment. Holdings whose numeric columns cannot be read degrade to
// zero-valued fields rather than failing the whole statement.
func ParseCAS(path, password string) (models.Segment, error) {
	text, err := ExtractText(path, password)
	if err != nil {
		return models.Segment{}, fmt.Errorf("failed to parse CAS file: %w", err)
	}
	return parseCASText(text), nil
}

func parseCASText(text string) models.Segment {
	segment := models.Segment{Holdings: []models.Holding{}}

	lines := strings.Split(text, "\n")
	currentFolio := ""

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if segment.Investor.Name == "" {
			if m := investorPattern.FindStringSubmatch(trimmed); m != nil {
				segment.Investor.Name = strings.TrimSpace(m[1])
			}
		}
		if segment.Investor.Email == "" {
			if m := emailPattern.FindString(trimmed); m != "" {
				segment.Investor.Email = strings.ToLower(m)
			}
		}
		if m := folioPattern.FindStringSubmatch(trimmed); m != nil {
			currentFolio = m[1]
			continue
		}

		if isin := fundISINPattern.FindString(trimmed); isin != "" {
			if h, ok := parseFundLine(trimmed, isin, currentFolio); ok {
				segment.Holdings = append(segment.Holdings, h)
			}
			continue
		}
		if isin := equityISINPattern.FindString(trimmed); isin != "" {
			if h, ok := parseEquityLine(trimmed, isin, currentFolio); ok {
				segment.Holdings = append(segment.Holdings, h)
			}
		}
	}

	segment.Summary, _, _ = portfolio.Recompute(segment.Holdings)
	return segment
}

// parseFundLine reads a mutual fund row: scheme name around the ISIN and a
// trailing run of numeric columns (units, NAV, invested, value; the last
// three numbers are NAV-invested-value on CAMS rows, units-NAV-value on NSDL
// rows; the final number is always current value).
func parseFundLine(line, isin, folio string) (models.Holding, bool) {
	name, numbers := splitNameAndNumbers(line, isin)
	if name == "" {
		return models.Holding{}, false
	}

	h := models.Holding{
		SchemeName: name,
		ISIN:       isin,
		AssetClass: portfolio.Classify(name, ""),
		AMC:        amcFromScheme(name),
		Folio:      folio,
	}

	switch {
	case len(numbers) >= 4:
		h.Units = numbers[len(numbers)-4]
		h.NAV = numbers[len(numbers)-3]
		h.InvestedAmount = numbers[len(numbers)-2]
		h.CurrentValue = numbers[len(numbers)-1]
	case len(numbers) == 3:
		h.Units = numbers[0]
		h.NAV = numbers[1]
		h.CurrentValue = numbers[2]
	case len(numbers) == 2:
		h.Units = numbers[0]
		h.CurrentValue = numbers[1]
	case len(numbers) == 1:
		h.CurrentValue = numbers[0]
	}

	if h.CurrentValue < 0 {
		h.CurrentValue = 0
	}
	if h.InvestedAmount < 0 {
		h.InvestedAmount = 0
	}
	if h.InvestedAmount > 0 {
		h.AbsoluteReturn = h.CurrentValue - h.InvestedAmount
		h.PercentageReturn = h.AbsoluteReturn / h.InvestedAmount * 100
	}

	return h, true
}

// parseEquityLine reads a demat equity row: company name, units, price, value.
func parseEquityLine(line, isin, folio string) (models.Holding, bool) {
	name, numbers := splitNameAndNumbers(line, isin)
	if name == "" || len(numbers) == 0 {
		return models.Holding{}, false
	}

	h := models.Holding{
		SchemeName: name,
		ISIN:       isin,
		AssetClass: models.AssetClassEquity,
		AMC:        "Direct Equity",
		Folio:      folio,
	}

	switch {
	case len(numbers) >= 3:
		h.Units = numbers[len(numbers)-3]
		h.NAV = numbers[len(numbers)-2]
		h.CurrentValue = numbers[len(numbers)-1]
	case len(numbers) == 2:
		h.Units = numbers[0]
		h.CurrentValue = numbers[1]
	default:
		h.CurrentValue = numbers[0]
	}

	if h.CurrentValue < 0 {
		h.CurrentValue = 0
	}
	return h, true
}

// splitNameAndNumbers separates a statement row into the scheme/company name
// and its trailing numeric columns.
func splitNameAndNumbers(line, isin string) (string, []float64) {
	line = strings.ReplaceAll(line, isin, " ")

	var numbers []float64
	var nameTokens []string
	for _, tok := range fields(line) {
		if isNumeric(tok) {
			numbers = append(numbers, parseNumber(tok))
			continue
		}
		nameTokens = append(nameTokens, tok)
	}

	name := strings.TrimSpace(strings.Join(nameTokens, " "))
	name = strings.Trim(name, "-–: ")
	return name, numbers
}

// amcFromScheme derives the fund house from a scheme name prefix.
func amcFromScheme(name string) string {
	for _, prefix := range amcPrefixes {
		if strings.HasPrefix(strings.ToLower(name), strings.ToLower(prefix)) {
			return prefix
		}
	}
	if tokens := fields(name); len(tokens) > 0 {
		return tokens[0]
	}
	return "Unknown"
}
