// Package transform reshapes a results ledger into a species-level summary
// for analysis. Output files are written next to the input and never replace
// it; identical input always yields byte-identical output.
package transform

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"flora/internal/fileutil"
	"flora/internal/ledger"
	"flora/internal/species"
)

// Suffix is appended to the input stem to name derived files.
const Suffix = "_transformed"

// Header is the column order of the summary CSV.
var Header = []string{"species_name", "image_count", "mean_confidence", "max_confidence", "filenames"}

// SpeciesSummary aggregates the ledger rows of one species.
type SpeciesSummary struct {
	Species        string   `json:"species_name"`
	Count          int      `json:"image_count"`
	MeanConfidence float64  `json:"mean_confidence"`
	MaxConfidence  float64  `json:"max_confidence"`
	Filenames      []string `json:"filenames"`
}

// Aggregate groups rows by species. Species are sorted ascending with the
// unidentified sentinel last; filenames within a species are sorted.
func Aggregate(led *ledger.Ledger) []SpeciesSummary {
	bySpecies := make(map[string][]ledger.Row)
	for _, row := range led.Rows() {
		bySpecies[row.Species] = append(bySpecies[row.Species], row)
	}

	out := make([]SpeciesSummary, 0, len(bySpecies))
	for name, rows := range bySpecies {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Filename < rows[j].Filename })
		summary := SpeciesSummary{Species: name, Count: len(rows), Filenames: make([]string, len(rows))}
		var sum float64
		for i, row := range rows {
			summary.Filenames[i] = row.Filename
			sum += row.Confidence
			if row.Confidence > summary.MaxConfidence {
				summary.MaxConfidence = row.Confidence
			}
		}
		summary.MeanConfidence = sum / float64(len(rows))
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		ui, uj := species.IsUnidentified(out[i].Species), species.IsUnidentified(out[j].Species)
		if ui != uj {
			return uj
		}
		return out[i].Species < out[j].Species
	})
	return out
}

// WriteCSV renders summaries as CSV.
func WriteCSV(w io.Writer, summaries []SpeciesSummary) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}
	for _, s := range summaries {
		record := []string{
			s.Species,
			strconv.Itoa(s.Count),
			formatConfidence(s.MeanConfidence),
			formatConfidence(s.MaxConfidence),
			strings.Join(s.Filenames, ";"),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// OutputPath derives the path of a derived file for inputPath with the given
// extension (".csv", ".xlsx").
func OutputPath(inputPath, ext string) string {
	dir := filepath.Dir(inputPath)
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+Suffix+ext)
}

// Transform loads the ledger at inputPath and writes the species summary to
// <stem>_transformed.csv next to it. It returns the output path.
func Transform(inputPath string) (string, error) {
	led, err := ledger.Load(inputPath)
	if err != nil {
		return "", err
	}
	outputPath := OutputPath(inputPath, ".csv")
	summaries := Aggregate(led)
	if err := fileutil.WriteFileAtomic(outputPath, 0o644, func(w io.Writer) error {
		return WriteCSV(w, summaries)
	}); err != nil {
		return "", fmt.Errorf("write %s: %w", outputPath, err)
	}
	return outputPath, nil
}

func formatConfidence(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
