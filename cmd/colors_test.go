package cmd

import (
	"testing"

	"github.com/fatih/color"
)

func TestFormatStatusCodeWithColor(t *testing.T) {
	original := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = original }()

	for _, code := range []int{0, 101, 200, 301, 404, 503} {
		got := formatStatusCodeWithColor(code)
		if got == "" {
			t.Fatalf("expected text for %d", code)
		}
	}
	if got := formatStatusCodeWithColor(404); got != "404" {
		t.Fatalf("expected plain 404 without color, got %q", got)
	}
}

func TestFormatStatusCodeWithColorEnabled(t *testing.T) {
	original := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = original }()

	if got := formatStatusCodeWithColor(200); got == "200" {
		t.Fatal("expected ANSI escape codes around 2xx status")
	}
	if got := formatStatusCodeWithColor(101); got != "101" {
		t.Fatalf("expected 1xx status to stay uncoloured, got %q", got)
	}
}
