package util

import "testing"

func TestSanitizeFileName(t *testing.T) {
	got, err := SanitizeFileName("  reports/2023\\annual.pdf ")
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if got != "reports_2023_annual.pdf" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
	for _, bad := range []string{"", "   ", "../x.pdf", "a..pdf"} {
		if _, err := SanitizeFileName(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}
