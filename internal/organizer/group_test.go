package organizer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"flora/internal/ledger"
	"flora/internal/organizer"
	"flora/internal/services"
	"flora/internal/species"
	"flora/internal/testsupport"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	sort.Strings(out)
	return out
}

func TestGroupMovesConformantFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	testsupport.WriteImage(t, dir, "JS_ficus_a.jpg")
	testsupport.WriteImage(t, dir, "JS_rosa_canina_c.jpg")
	testsupport.WriteImage(t, dir, "loose.jpg")

	grouper := organizer.NewGrouper(cfg)
	report, err := grouper.Apply(context.Background(), dir, organizer.NameSource{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if report.Count(organizer.StatusMoved) != 2 || report.Count(organizer.StatusUngrouped) != 1 {
		t.Fatalf("unexpected report %+v", report.Outcomes)
	}
	tree := testsupport.Tree(t, dir)
	if !reflect.DeepEqual(tree, []string{"ficus/JS_ficus_a.jpg", "loose.jpg", "rosa_canina/JS_rosa_canina_c.jpg"}) {
		t.Fatalf("unexpected tree %v", tree)
	}

	second, err := grouper.Apply(context.Background(), dir, organizer.NameSource{})
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if second.Count(organizer.StatusMoved) != 0 || second.Count(organizer.StatusInPlace) != 2 {
		t.Fatalf("expected idempotent second pass, got %+v", second.Outcomes)
	}
	if got := testsupport.Tree(t, dir); !reflect.DeepEqual(got, tree) {
		t.Fatalf("second pass changed tree to %v", got)
	}
}

func TestGroupNeverLosesFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	for _, name := range []string{"JS_ficus_a.jpg", "JS_ficus_b.jpg", "JS_oak_c.png", "x.jpg", "JS_unidentified_d.jpg"} {
		testsupport.WriteImage(t, dir, name)
	}
	// A file already occupying a target must survive untouched.
	testsupport.WriteFile(t, filepath.Join(dir, "ficus", "JS_ficus_b.jpg"), []byte("earlier copy"))
	// A plain file where the species directory should be.
	testsupport.WriteFile(t, filepath.Join(dir, "oak"), []byte("not a dir"))

	before := baseNames(testsupport.Tree(t, dir))
	report, err := organizer.NewGrouper(cfg).Apply(context.Background(), dir, organizer.NameSource{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	after := baseNames(testsupport.Tree(t, dir))
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("file multiset changed:\nbefore %v\nafter  %v", before, after)
	}
	if report.Count(organizer.StatusConflict) != 2 {
		t.Fatalf("expected two conflicts, got %+v", report.Outcomes)
	}
	if got := readFile(t, filepath.Join(dir, "ficus", "JS_ficus_b.jpg")); got != "earlier copy" {
		t.Fatalf("existing file overwritten: %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "JS_unidentified_d.jpg")); err != nil {
		t.Fatalf("expected unidentified file left at top level: %v", err)
	}
}

func TestGroupIncludesUnidentifiedWhenConfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithIncludeUnidentified(true))
	dir := t.TempDir()
	testsupport.WriteImage(t, dir, "JS_unidentified_b.jpg")

	report, err := organizer.NewGrouper(cfg).Apply(context.Background(), dir, organizer.NameSource{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if report.Count(organizer.StatusMoved) != 1 {
		t.Fatalf("unexpected report %+v", report.Outcomes)
	}
	if got := testsupport.Tree(t, dir); !reflect.DeepEqual(got, []string{"unidentified/JS_unidentified_b.jpg"}) {
		t.Fatalf("unexpected tree %v", got)
	}
}

func TestGroupWithLedgerSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	testsupport.WriteImage(t, dir, "a.jpg")
	testsupport.WriteImage(t, dir, "b.jpg")
	testsupport.WriteImage(t, dir, "JS_oak_c.jpg")
	led := ledger.New()
	led.Upsert(ledger.Row{Filename: "A.JPG", Species: "ficus", Confidence: 0.9})
	led.Upsert(ledger.Row{Filename: "b.jpg", Species: species.Unidentified})
	led.Upsert(ledger.Row{Filename: "c.jpg", Species: "oak", Confidence: 0.7})

	report, err := organizer.NewGrouper(cfg).Apply(context.Background(), dir, organizer.LedgerSource{Ledger: led})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := statuses(report); got["b.jpg"] != organizer.StatusUnidentified {
		t.Fatalf("expected b.jpg unidentified, got %v", got)
	}
	if got := testsupport.Tree(t, dir); !reflect.DeepEqual(got, []string{"b.jpg", "ficus/a.jpg", "oak/JS_oak_c.jpg"}) {
		t.Fatalf("unexpected tree %v", got)
	}
}

func TestGroupDryRunLeavesTreeUntouched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	testsupport.WriteImage(t, dir, "JS_ficus_a.jpg")
	testsupport.WriteImage(t, dir, "JS_ficus_b.jpg")

	report, err := organizer.NewGrouper(cfg, organizer.WithDryRun(true)).Apply(context.Background(), dir, organizer.NameSource{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if report.Count(organizer.StatusMoved) != 2 {
		t.Fatalf("unexpected report %+v", report.Outcomes)
	}
	if got := testsupport.Tree(t, dir); !reflect.DeepEqual(got, []string{"JS_ficus_a.jpg", "JS_ficus_b.jpg"}) {
		t.Fatalf("dry-run changed tree to %v", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "ficus")); !os.IsNotExist(err) {
		t.Fatalf("dry-run created species directory: %v", err)
	}
}

func TestGroupLeavesCameraNamesAtTopLevel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	for _, name := range []string{"IMG_20240101_123456.jpg", "PXL_20240101_123456789.jpg", "DSC_flower_0001.jpg", "JS_ficus_a.jpg"} {
		testsupport.WriteImage(t, dir, name)
	}
	led := ledger.New()
	led.Upsert(ledger.Row{Filename: "a.jpg", Species: "ficus", Confidence: 0.9})

	report, err := organizer.NewGrouper(cfg).Apply(context.Background(), dir, organizer.LedgerSource{Ledger: led})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := map[string]organizer.Status{
		"IMG_20240101_123456.jpg":    organizer.StatusUngrouped,
		"PXL_20240101_123456789.jpg": organizer.StatusUngrouped,
		"DSC_flower_0001.jpg":        organizer.StatusUngrouped,
		"JS_ficus_a.jpg":             organizer.StatusMoved,
	}
	if got := statuses(report); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected statuses %v", got)
	}
	wantTree := []string{"DSC_flower_0001.jpg", "IMG_20240101_123456.jpg", "PXL_20240101_123456789.jpg", "ficus/JS_ficus_a.jpg"}
	if got := testsupport.Tree(t, dir); !reflect.DeepEqual(got, wantTree) {
		t.Fatalf("unexpected tree %v", got)
	}
}

func TestGroupNameSourceSkipsNumericCameraNames(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	testsupport.WriteImage(t, dir, "IMG_20240101_123456.jpg")

	report, err := organizer.NewGrouper(cfg).Apply(context.Background(), dir, organizer.NameSource{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := statuses(report); got["IMG_20240101_123456.jpg"] != organizer.StatusUngrouped {
		t.Fatalf("expected ungrouped, got %v", got)
	}
	if got := testsupport.Tree(t, dir); !reflect.DeepEqual(got, []string{"IMG_20240101_123456.jpg"}) {
		t.Fatalf("unexpected tree %v", got)
	}
}

func TestGroupRequiresSpeciesSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	testsupport.WriteImage(t, dir, "JS_ficus_a.jpg")

	_, err := organizer.NewGrouper(cfg).Apply(context.Background(), dir, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if got := testsupport.Tree(t, dir); !reflect.DeepEqual(got, []string{"JS_ficus_a.jpg"}) {
		t.Fatalf("unexpected tree %v", got)
	}
}
