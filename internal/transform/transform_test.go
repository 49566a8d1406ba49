package transform_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"flora/internal/ledger"
	"flora/internal/services"
	"flora/internal/testsupport"
	"flora/internal/transform"
)

const sampleLedger = "filename,species_name,confidence_score\n" +
	"c.jpg,ficus,0.5\n" +
	"b.jpg,unidentified,0\n" +
	"a.jpg,ficus,0.92\n" +
	"d.jpg,acer_rubrum,0.81\n"

func TestTransformAggregatesBySpecies(t *testing.T) {
	input := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "results.csv"), []byte(sampleLedger))

	output, err := transform.Transform(input)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if filepath.Base(output) != "results_transformed.csv" || filepath.Dir(output) != filepath.Dir(input) {
		t.Fatalf("unexpected output path %s", output)
	}
	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "species_name,image_count,mean_confidence,max_confidence,filenames\n" +
		"acer_rubrum,1,0.8100,0.8100,d.jpg\n" +
		"ficus,2,0.7100,0.9200,a.jpg;c.jpg\n" +
		"unidentified,1,0.0000,0.0000,b.jpg\n"
	if string(got) != want {
		t.Fatalf("unexpected output:\n%s", got)
	}
	if input, _ := os.ReadFile(input); string(input) != sampleLedger {
		t.Fatalf("input modified: %q", input)
	}
}

func TestTransformIsPure(t *testing.T) {
	input := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "results.csv"), []byte(sampleLedger))

	first, err := transform.Transform(input)
	if err != nil {
		t.Fatalf("first Transform: %v", err)
	}
	firstBytes, _ := os.ReadFile(first)
	second, err := transform.Transform(input)
	if err != nil {
		t.Fatalf("second Transform: %v", err)
	}
	secondBytes, _ := os.ReadFile(second)
	if first != second || !bytes.Equal(firstBytes, secondBytes) {
		t.Fatalf("expected byte-identical output")
	}
}

func TestAggregateKeepsEveryRow(t *testing.T) {
	led, err := ledger.Read(strings.NewReader(sampleLedger))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	total := 0
	for _, s := range transform.Aggregate(led) {
		total += len(s.Filenames)
		if s.Count != len(s.Filenames) {
			t.Fatalf("count mismatch for %s", s.Species)
		}
	}
	if total != led.Len() {
		t.Fatalf("expected %d filenames, got %d", led.Len(), total)
	}
}

func TestTransformRejectsMalformedLedger(t *testing.T) {
	input := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "results.csv"), []byte("file,species\na.jpg,ficus\n"))
	if _, err := transform.Transform(input); !errors.Is(err, services.ErrMalformedLedger) {
		t.Fatalf("expected ErrMalformedLedger, got %v", err)
	}
	if _, err := os.Stat(transform.OutputPath(input, ".csv")); !os.IsNotExist(err) {
		t.Fatalf("expected no output, stat err=%v", err)
	}
}

func TestWriteWorkbook(t *testing.T) {
	led, err := ledger.Read(strings.NewReader(sampleLedger))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	path := filepath.Join(t.TempDir(), "results_transformed.xlsx")
	if err := transform.WriteWorkbook(led, path); err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}

	book, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer book.Close()

	speciesRows, err := book.GetRows("species")
	if err != nil {
		t.Fatalf("species rows: %v", err)
	}
	if len(speciesRows) != 4 || speciesRows[2][0] != "ficus" || speciesRows[2][1] != "2" {
		t.Fatalf("unexpected species sheet %v", speciesRows)
	}
	ledgerRows, err := book.GetRows("ledger")
	if err != nil {
		t.Fatalf("ledger rows: %v", err)
	}
	if len(ledgerRows) != 5 || ledgerRows[0][1] != "species_name" || ledgerRows[1][0] != "c.jpg" {
		t.Fatalf("unexpected ledger sheet %v", ledgerRows)
	}
}

func TestOutputPathNeverMatchesInput(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		filepath.Join(dir, "results.csv"):             filepath.Join(dir, "results_transformed.csv"),
		filepath.Join(dir, "results_transformed.csv"): filepath.Join(dir, "results_transformed_transformed.csv"),
		filepath.Join(dir, "ledger"):                  filepath.Join(dir, "ledger_transformed.csv"),
	}
	for input, want := range cases {
		got := transform.OutputPath(input, ".csv")
		if got != want {
			t.Fatalf("OutputPath(%q) = %q, want %q", input, got, want)
		}
		if got == input {
			t.Fatalf("output path equals input %q", input)
		}
	}
}
