package ledger_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"flora/internal/ledger"
	"flora/internal/services"
	"flora/internal/species"
)

func TestUpsertReplacesCaseInsensitive(t *testing.T) {
	l := ledger.New()
	l.Upsert(ledger.Row{Filename: "a.jpg", Species: "ficus", Confidence: 0.5})
	l.Upsert(ledger.Row{Filename: "b.jpg", Species: "rosa", Confidence: 0.4})
	l.Upsert(ledger.Row{Filename: "A.JPG", Species: "quercus", Confidence: 0.9})

	if l.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", l.Len())
	}
	row, ok := l.Lookup("a.jpg")
	if !ok {
		t.Fatal("expected row for a.jpg")
	}
	if row.Species != "quercus" || row.Confidence != 0.9 {
		t.Fatalf("expected second value to win, got %+v", row)
	}
	rows := l.Rows()
	if rows[0].Filename != "A.JPG" || rows[1].Filename != "b.jpg" {
		t.Fatalf("expected insertion order preserved, got %+v", rows)
	}
}

func TestUpsertSentinelAndClamp(t *testing.T) {
	l := ledger.New()
	l.Upsert(ledger.Row{Filename: "b.jpg", Species: "  ", Confidence: 1.7})
	l.Upsert(ledger.Row{Filename: "  ", Species: "ficus"})

	if l.Len() != 1 {
		t.Fatalf("expected blank filename to be ignored, got %d rows", l.Len())
	}
	row, _ := l.Lookup("b.jpg")
	if row.Species != species.Unidentified {
		t.Fatalf("expected sentinel species, got %q", row.Species)
	}
	if !row.Unidentified() {
		t.Fatal("expected Unidentified() to report true")
	}
	if row.Confidence != 1 {
		t.Fatalf("expected clamped confidence, got %v", row.Confidence)
	}
}

func TestLookupMissing(t *testing.T) {
	var nilLedger *ledger.Ledger
	if _, ok := nilLedger.Lookup("a.jpg"); ok {
		t.Fatal("expected nil ledger lookup to miss")
	}
	if _, ok := ledger.New().Lookup("a.jpg"); ok {
		t.Fatal("expected empty ledger lookup to miss")
	}
}

func TestReadToleratesHeaderVariants(t *testing.T) {
	input := "\ufeff Confidence_Score ,FILENAME, Species_Name\n0.92,a.jpg,Ficus\n,b.jpg,\n\n"
	l, err := ledger.Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if l.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", l.Len())
	}
	a, _ := l.Lookup("a.jpg")
	if a.Species != "ficus" || a.Confidence != 0.92 {
		t.Fatalf("unexpected row a: %+v", a)
	}
	b, _ := l.Lookup("b.jpg")
	if b.Species != species.Unidentified || b.Confidence != 0 {
		t.Fatalf("unexpected row b: %+v", b)
	}
}

func TestReadConfidenceOptional(t *testing.T) {
	l, err := ledger.Read(strings.NewReader("filename,species_name\na.jpg,ficus\n"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	row, _ := l.Lookup("a.jpg")
	if row.Confidence != 0 {
		t.Fatalf("expected zero confidence, got %v", row.Confidence)
	}
}

func TestReadMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"missing filename": "name,species_name\na.jpg,ficus\n",
		"missing species":  "filename,confidence_score\na.jpg,0.5\n",
		"bad confidence":   "filename,species_name,confidence_score\na.jpg,ficus,high\n",
		"blank filename":   "filename,species_name,confidence_score\n,ficus,0.5\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ledger.Read(strings.NewReader(input))
			if !errors.Is(err, services.ErrMalformedLedger) {
				t.Fatalf("expected ErrMalformedLedger, got %v", err)
			}
		})
	}
}

func TestReadReportsLineNumber(t *testing.T) {
	input := "filename,species_name,confidence_score\na.jpg,ficus,0.5\nb.jpg,rosa,nope\n"
	_, err := ledger.Read(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("expected line 3 in error, got %v", err)
	}
}

func TestWriteCanonicalLayout(t *testing.T) {
	l := ledger.New()
	l.Upsert(ledger.Row{Filename: "a.jpg", Species: "ficus", Confidence: 0.92})
	l.Upsert(ledger.Row{Filename: "b, c.jpg", Species: species.Unidentified})

	var buf bytes.Buffer
	if err := l.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "filename,species_name,confidence_score\na.jpg,ficus,0.92\n\"b, c.jpg\",unidentified,0\n"
	if buf.String() != want {
		t.Fatalf("unexpected output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	l := ledger.New()
	l.Upsert(ledger.Row{Filename: "a.jpg", Species: "ficus", Confidence: 0.92})
	l.Upsert(ledger.Row{Filename: "b.jpg", Species: species.Unidentified})
	if err := l.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := ledger.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, want := loaded.Rows(), l.Rows()
	if len(got) != len(want) {
		t.Fatalf("row count mismatch: %d vs %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d mismatch: %+v vs %+v", i, got[i], want[i])
		}
	}
}

func TestLoadOrNew(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.csv")

	if _, err := ledger.Load(path); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	l, err := ledger.LoadOrNew(path)
	if err != nil {
		t.Fatalf("LoadOrNew: %v", err)
	}
	if l.Len() != 0 {
		t.Fatalf("expected empty ledger, got %d rows", l.Len())
	}

	if err := os.WriteFile(path, []byte("bogus\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ledger.LoadOrNew(path); !errors.Is(err, services.ErrMalformedLedger) {
		t.Fatalf("expected ErrMalformedLedger, got %v", err)
	}
}

func TestAcquireRejectsSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	first, err := ledger.Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if _, err := ledger.Acquire(path); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for held lock, got %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	second, err := ledger.Acquire(path)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	_ = second.Release()
}
