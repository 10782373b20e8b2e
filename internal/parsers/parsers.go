// Package parsers extracts normalized portfolio segments from source
// documents (NSDL/CAMS CAS statements, Vested US-equity statements).
//
// Parsers are collaborators of the aggregation core: they hand over a
// models.Segment and never touch the master portfolio. Numeric fields the
// source omits degrade to zero; a statement without cost basis is valid
// data, not an error.
package parsers

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractText extracts plain text from a PDF file, optionally decrypting it
// with the supplied password.
func ExtractText(path, password string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat PDF: %w", err)
	}

	r, err := pdf.NewReaderEncrypted(f, info.Size(), func() string { return password })
	if err != nil {
		return "", fmt.Errorf("failed to read PDF: %w", err)
	}

	var sb strings.Builder
	totalPages := r.NumPage()

	for i := 1; i <= totalPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// parseNumber parses a statement figure, tolerating thousands separators,
// currency symbols, and accounting-style parentheses for negatives.
// Unparseable input yields 0.
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}

	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	if negative {
		return -f
	}
	return f
}

// fields splits a statement line on runs of whitespace.
func fields(line string) []string {
	return strings.Fields(line)
}

// isNumeric reports whether a token parses as a statement figure. It accepts
// the same currency prefixes and separators parseNumber tolerates.
func isNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = s[1 : len(s)-1]
	}
	s = strings.TrimPrefix(s, "₹")
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
