package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"flora/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "plantnet", "identify", "request failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"plantnet", "identify", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestIsFatal(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{services.Wrap(services.ErrAuth, "plantnet", "identify", "rejected key", nil), true},
		{services.Wrap(services.ErrMalformedLedger, "ledger", "load", "missing column", nil), true},
		{services.Wrap(services.ErrTransient, "plantnet", "identify", "503", nil), false},
		{services.Wrap(services.ErrUnsupportedFormat, "plantnet", "identify", "gif", nil), false},
		{fmt.Errorf("outer: %w", services.ErrAuth), true},
	}
	for _, tc := range cases {
		if got := services.IsFatal(tc.err); got != tc.want {
			t.Fatalf("IsFatal(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestReasonLabels(t *testing.T) {
	cases := map[error]string{
		services.Wrap(services.ErrAuth, "", "", "x", nil):              "auth",
		services.Wrap(services.ErrTransient, "", "", "x", nil):         "transient",
		services.Wrap(services.ErrUnsupportedFormat, "", "", "x", nil): "unsupported_format",
		services.Wrap(services.ErrRenameConflict, "", "", "x", nil):    "conflict",
		services.Wrap(services.ErrGroupConflict, "", "", "x", nil):     "conflict",
		errors.New("plain"): "error",
	}
	for err, want := range cases {
		if got := services.Reason(err); got != want {
			t.Fatalf("Reason(%v) = %q, want %q", err, got, want)
		}
	}
	if got := services.Reason(nil); got != "" {
		t.Fatalf("expected empty reason for nil, got %q", got)
	}
}
