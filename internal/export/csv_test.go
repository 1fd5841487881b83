package export

import (
	"strings"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func row(y, m, d int, typ core.TransactionType, cat, desc string, cents int64) storage.ExportRow {
	return storage.ExportRow{
		Date:         core.NewDate(y, m, d),
		Type:         typ,
		CategoryName: cat,
		Description:  desc,
		Amount:       core.Money{Cents: cents},
	}
}

func TestWriteCSV(t *testing.T) {
	var sb strings.Builder
	rows := []storage.ExportRow{
		row(2024, 3, 1, core.Expense, "Food", "groceries", 10000),
		row(2024, 3, 10, core.Income, "Salary", "march salary", 500000),
	}
	if err := WriteCSV(&sb, rows); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	// descriptions are quoted unconditionally
	want := "Date,Type,Category,Description,Amount\n" +
		"2024-03-01,expense,Food,\"groceries\",100.00\n" +
		"2024-03-10,income,Salary,\"march salary\",5000.00\n"
	if sb.String() != want {
		t.Fatalf("csv mismatch:\ngot:\n%s\nwant:\n%s", sb.String(), want)
	}
}

func TestWriteCSVQuotesCommas(t *testing.T) {
	var sb strings.Builder
	if err := WriteCSV(&sb, []storage.ExportRow{
		row(2024, 3, 1, core.Expense, "Food, Dining", `dinner, "La Pergola"`, 15000),
	}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if !strings.Contains(sb.String(), `"dinner, ""La Pergola"""`) {
		t.Fatalf("description should be quoted and escaped, got:\n%s", sb.String())
	}
	if !strings.Contains(sb.String(), `"Food, Dining"`) {
		t.Fatalf("comma category should be quoted, got:\n%s", sb.String())
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var sb strings.Builder
	if err := WriteCSV(&sb, nil); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if sb.String() != "Date,Type,Category,Description,Amount\n" {
		t.Fatalf("empty export should be header only, got %q", sb.String())
	}
}
