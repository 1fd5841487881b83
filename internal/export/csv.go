// Package export renders transactions for the two export targets: CSV
// download and the Google Sheets mirror.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"fintrack/internal/storage"
)

// CSVHeader is the first row of every transaction export.
var CSVHeader = []string{"Date", "Type", "Category", "Description", "Amount"}

// WriteCSV streams rows as CSV. Dates render as YYYY-MM-DD and amounts as
// plain decimals with two places. The free-text description column is
// always double-quoted; the category column only when it needs escaping.
func WriteCSV(w io.Writer, rows []storage.ExportRow) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(CSVHeader, ",") + "\n"); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if _, err := bw.WriteString(csvRecord(row) + "\n"); err != nil {
			return fmt.Errorf("write csv row %d: %w", row.ID, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func csvRecord(row storage.ExportRow) string {
	return strings.Join([]string{
		row.Date.String(),
		string(row.Type),
		quoteIfNeeded(row.CategoryName),
		quote(row.Description),
		fmt.Sprintf("%.2f", row.Amount.Float64()),
	}, ",")
}

// quote wraps s in double quotes, doubling any embedded quote per RFC 4180.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, ",\"\n\r") {
		return quote(s)
	}
	return s
}
