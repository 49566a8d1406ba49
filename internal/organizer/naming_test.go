package organizer

import (
	"errors"
	"testing"

	"flora/internal/ledger"
	"flora/internal/services"
)

func TestFormatName(t *testing.T) {
	cases := []struct {
		prefix, species, filename, want string
	}{
		{"JS", "ficus", "a.jpg", "JS_ficus_a.jpg"},
		{"JS", "Ficus Lyrata", "IMG_0001.JPG", "JS_ficus_lyrata_IMG-0001.JPG"},
		{"JS", "", "b.png", "JS_unidentified_b.png"},
		{"JS", "rosa", "JS_ficus_a.jpg", "JS_rosa_JS-ficus-a.jpg"},
		{"IMG", "ficus", "IMG_2024_001.jpg", "IMG_ficus_IMG-2024-001.jpg"},
		{"JS", "ficus", "JS_ficus_a.jpg", "JS_ficus_a.jpg"},
		{"KM", "ficus", "my photo.jpeg", "KM_ficus_my-photo.jpeg"},
	}
	for _, tc := range cases {
		if got := FormatName(tc.prefix, tc.species, tc.filename); got != tc.want {
			t.Fatalf("FormatName(%q, %q, %q) = %q, want %q", tc.prefix, tc.species, tc.filename, got, tc.want)
		}
	}
}

func TestParseName(t *testing.T) {
	parsed, ok := ParseName("JS_ficus_lyrata_IMG-0001.jpg")
	if !ok {
		t.Fatal("expected conformant name")
	}
	if parsed.Prefix != "JS" || parsed.Species != "ficus_lyrata" || parsed.Stem != "IMG-0001" || parsed.Ext != ".jpg" {
		t.Fatalf("unexpected parse %+v", parsed)
	}
	if parsed.String() != "JS_ficus_lyrata_IMG-0001.jpg" {
		t.Fatalf("round trip mismatch: %s", parsed.String())
	}

	for _, name := range []string{"a.jpg", "IMG_0001.jpg", "JS_Ficus_a.jpg", "J-S_ficus_a.jpg", "JS__a.jpg", "JS_ficus_.jpg", "IMG_20240101_123456.jpg", "PXL_20240101_123456789.jpg"} {
		if _, ok := ParseName(name); ok {
			t.Fatalf("expected %q to be non-conformant", name)
		}
	}
}

func TestValidatePrefix(t *testing.T) {
	if got, err := ValidatePrefix("  JS2 "); err != nil || got != "JS2" {
		t.Fatalf("ValidatePrefix = %q, %v", got, err)
	}
	for _, bad := range []string{"", "   ", "J S", "J_S", "JS!"} {
		if _, err := ValidatePrefix(bad); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected ErrValidation for %q, got %v", bad, err)
		}
	}
}

func TestNameConfirmedBy(t *testing.T) {
	led := ledger.New()
	led.Upsert(ledger.Row{Filename: "a.jpg", Species: "ficus", Confidence: 0.9})
	led.Upsert(ledger.Row{Filename: "my photo.png", Species: "Rosa canina", Confidence: 0.7})
	led.Upsert(ledger.Row{Filename: "KM_oak_c.jpg", Species: "acer", Confidence: 0.6})

	confirmed := []string{"JS_ficus_a.jpg", "KM_ficus_a.jpg", "JS_rosa_canina_my-photo.png", "JS_acer_c.jpg"}
	for _, name := range confirmed {
		parsed, ok := ParseName(name)
		if !ok {
			t.Fatalf("expected %q to parse", name)
		}
		if !parsed.ConfirmedBy(led) {
			t.Fatalf("expected %q to be confirmed", name)
		}
	}

	rejected := []string{"JS_oak_a.jpg", "JS_ficus_b.jpg", "JS_ficus_a.png", "DSC_flower_0001.jpg"}
	for _, name := range rejected {
		parsed, ok := ParseName(name)
		if !ok {
			t.Fatalf("expected %q to parse", name)
		}
		if parsed.ConfirmedBy(led) {
			t.Fatalf("expected %q to be unconfirmed", name)
		}
	}

	parsed, _ := ParseName("JS_ficus_a.jpg")
	if parsed.ConfirmedBy(nil) {
		t.Fatal("expected nil ledger to confirm nothing")
	}
}
