package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"  a/b:c*d?.jpg ": "a-b-c-d.jpg",
		`"quoted"<x>|`:    "quotedx",
		"":                "",
	}
	for input, want := range cases {
		if got := SanitizeFileName(input); got != want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	cases := map[string]string{
		"IMG_0001":       "IMG-0001",
		"my  photo":      "my-photo",
		"__a__b__":       "a-b",
		"already-dashed": "already-dashed",
		"leaf - 2":       "leaf-2",
		"???":            "unknown",
		"":               "unknown",
	}
	for input, want := range cases {
		if got := SanitizeToken(input); got != want {
			t.Fatalf("SanitizeToken(%q) = %q, want %q", input, got, want)
		}
	}
}
