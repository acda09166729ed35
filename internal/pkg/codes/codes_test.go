package codes

import (
	"strings"
	"testing"
)

func TestRandom_InvalidLength(t *testing.T) {
	t.Parallel()

	if _, err := Random(0); err == nil {
		t.Fatalf("expected error for invalid length")
	}
}

func TestRandom_LengthAndAlphabet(t *testing.T) {
	t.Parallel()

	code, err := Random(12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(code) != 12 {
		t.Fatalf("expected length 12, got %d", len(code))
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(alphabet, code[i]) == -1 {
			t.Fatalf("code contains invalid character %q", code[i])
		}
	}
}

func TestGenerateMemberCode_UniqueWithinSmallBatch(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		code, err := GenerateMemberCode()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(code, MemberCodePrefix) || len(code) != len(MemberCodePrefix)+memberCodeLength {
			t.Fatalf("unexpected member code %q", code)
		}
		if _, exists := seen[code]; exists {
			t.Fatalf("duplicate member code generated in small batch: %s", code)
		}
		seen[code] = struct{}{}
	}
}

func TestGenerateProviderCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		stem string
	}{
		{"Sunrise Academy", "SUNRIS-"},
		{"A1 Fit", "A1FIT-"},
		{"श्री", "PRV-"},
	}
	for _, tt := range tests {
		code, err := GenerateProviderCode(tt.name)
		if err != nil {
			t.Fatalf("GenerateProviderCode(%q) error: %v", tt.name, err)
		}
		if !strings.HasPrefix(code, tt.stem) || len(code) != len(tt.stem)+providerSuffix {
			t.Fatalf("GenerateProviderCode(%q) = %q, want prefix %q", tt.name, code, tt.stem)
		}
	}
}
