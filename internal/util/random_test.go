package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomID(t *testing.T) {
	got := GenerateRandomID("notify_", 32)
	if !strings.HasPrefix(got, "notify_") || len(got) != len("notify_")+32 {
		t.Errorf("unexpected id %q", got)
	}
	if strings.Trim(got[len("notify_"):], "0123456789abcdef") != "" {
		t.Errorf("id suffix is not hex: %q", got)
	}
}

func TestGenerateRandomHex_NonPositive(t *testing.T) {
	if GenerateRandomHex(0) != "" || GenerateRandomHex(-3) != "" {
		t.Error("expected empty string for non-positive length")
	}
}

func TestGenerateJoinCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code := GenerateJoinCode(DefaultJoinCodeLength)
		if len(code) != DefaultJoinCodeLength {
			t.Fatalf("unexpected length for %q", code)
		}
		if strings.ContainsAny(code, "01OIL") {
			t.Fatalf("code %q contains an ambiguous character", code)
		}
		seen[code] = true
	}
	if len(seen) < 190 {
		t.Errorf("codes repeat too often: %d unique of 200", len(seen))
	}
}

func TestNormalizeJoinCode(t *testing.T) {
	tests := map[string]string{
		"abc123":    "ABC123",
		" ab c12 3": "ABC123",
		"":          "",
	}
	for in, want := range tests {
		if got := NormalizeJoinCode(in); got != want {
			t.Errorf("NormalizeJoinCode(%q) = %q, want %q", in, got, want)
		}
	}
}
