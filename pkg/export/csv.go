package export

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"bank-dashboard/pkg/transaction"
)

// Header is the fixed first line of every export.
const Header = "Date,Name,Amount,Category"

const (
	// Filename is offered for every download.
	Filename = "transactions.csv"
	// ContentType of the exported document.
	ContentType = "text/csv"

	fieldSep    = ","
	rowSep      = "\n"
	categorySep = "/"
)

// Encode renders records as CSV text: the header, then one row per record
// in order. Fields are joined as-is; values containing commas or newlines
// are not quoted, so such names split across columns. Consumers rely on
// this unescaped layout.
func Encode(records []transaction.Record) string {
	rows := make([]string, 0, len(records)+1)
	rows = append(rows, Header)

	for _, rec := range records {
		rows = append(rows, strings.Join(Row(rec), fieldSep))
	}

	return strings.Join(rows, rowSep)
}

// Row returns the four export fields of a record.
func Row(rec transaction.Record) []string {
	return []string{
		rec.Date,
		rec.Name,
		rec.Amount.String(),
		rec.CategoryPath(categorySep),
	}
}

// Download hands csvText to an HTTP client as a transactions.csv attachment.
// Write failures are not reported back.
func Download(w http.ResponseWriter, csvText string) {
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(csvText))
}

// WriteFile saves csvText as transactions.csv inside dir and returns the path.
func WriteFile(dir, csvText string) (string, error) {
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, Filename)
	if err := os.WriteFile(path, []byte(csvText), 0o644); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}
	return path, nil
}
