package transform

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"flora/internal/fileutil"
	"flora/internal/ledger"
)

const (
	sheetSpecies = "species"
	sheetLedger  = "ledger"
)

// WriteWorkbook writes an XLSX file with the species summary and the raw
// ledger rows on separate sheets.
func WriteWorkbook(led *ledger.Ledger, path string) error {
	book := excelize.NewFile()
	defer func() {
		_ = book.Close()
	}()

	if err := book.SetSheetName("Sheet1", sheetSpecies); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if _, err := book.NewSheet(sheetLedger); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	if err := setRow(book, sheetSpecies, 1, stringsToRow(Header)); err != nil {
		return err
	}
	for i, s := range Aggregate(led) {
		row := []any{s.Species, s.Count, round4(s.MeanConfidence), round4(s.MaxConfidence), strings.Join(s.Filenames, ";")}
		if err := setRow(book, sheetSpecies, i+2, row); err != nil {
			return err
		}
	}

	if err := setRow(book, sheetLedger, 1, stringsToRow(ledger.Header)); err != nil {
		return err
	}
	for i, r := range led.Rows() {
		if err := setRow(book, sheetLedger, i+2, []any{r.Filename, r.Species, r.Confidence}); err != nil {
			return err
		}
	}

	return fileutil.WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		_, err := book.WriteTo(w)
		return err
	})
}

func setRow(book *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := book.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func stringsToRow(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func round4(v float64) float64 {
	return float64(int64(v*10000+0.5)) / 10000
}
