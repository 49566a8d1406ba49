package species_test

import (
	"testing"

	"flora/internal/species"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Ficus lyrata":              "ficus_lyrata",
		"  Ficus   Lyrata  ":        "ficus_lyrata",
		"Rosa × alba":               "rosa_alba",
		"Hélianthe annuel":          "helianthe_annuel",
		"Acer pseudo-platanus L.":   "acer_pseudo-platanus_l",
		"ficus":                     "ficus",
		"Quercus robur subsp. robur": "quercus_robur_subsp_robur",
		"***":                       "",
	}
	for input, want := range cases {
		if got := species.Normalize(input); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeOrSentinel(t *testing.T) {
	if got := species.NormalizeOrSentinel("  "); got != species.Unidentified {
		t.Fatalf("expected sentinel, got %q", got)
	}
	if got := species.NormalizeOrSentinel("Ficus"); got != "ficus" {
		t.Fatalf("expected ficus, got %q", got)
	}
}

func TestValidToken(t *testing.T) {
	for _, ok := range []string{"ficus", "pseudo-platanus", "a1"} {
		if !species.ValidToken(ok) {
			t.Fatalf("expected %q to be valid", ok)
		}
	}
	for _, bad := range []string{"", "Ficus", "ficus lyrata", "ficus.jpg"} {
		if species.ValidToken(bad) {
			t.Fatalf("expected %q to be invalid", bad)
		}
	}
}

func TestDisplay(t *testing.T) {
	if got := species.Display("ficus_lyrata"); got != "Ficus lyrata" {
		t.Fatalf("unexpected display %q", got)
	}
	if got := species.Display(""); got != "" {
		t.Fatalf("expected empty display, got %q", got)
	}
}
