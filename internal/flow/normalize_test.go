package flow

import (
	"testing"

	"github.com/BTreeMap/TastingFlow/internal/models"
	"github.com/google/go-cmp/cmp"
)

func TestNormalizeType(t *testing.T) {
	tests := map[string]models.StepKind{
		"1-10 sliding scale": models.StepScale,
		"Multiple Choice":    models.StepMultipleChoice,
		"multiple_choice":    models.StepMultipleChoice,
		"checkbox":           models.StepMultipleChoice,
		"scale":              models.StepScale,
		"Rating":             models.StepScale,
		"number":             models.StepScale,
		"text":               models.StepText,
		"TextArea":           models.StepText,
		"string":             models.StepText,
		" audio ":            models.StepAudio,
		"VIDEO":              models.StepVideo,
		"signin":             models.StepSignIn,
		"interlude":          models.StepInterlude,
		"thanks":             models.StepThanks,
		"divider":            models.StepDivider,
		"weird_unknown":      models.StepText,
		"":                   models.StepText,
	}
	for label, want := range tests {
		if got := NormalizeType(label); got != want {
			t.Errorf("NormalizeType(%q) = %q, want %q", label, got, want)
		}
	}
}

func TestIsInfoType(t *testing.T) {
	if !IsInfoType(" Info ") {
		t.Error("expected Info to be recognised")
	}
	if IsInfoType("text") {
		t.Error("text is not info")
	}
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want []string
	}{
		{"nil", nil, nil},
		{"empty string", "   ", nil},
		{"semicolons", "Apple;Pear;Citrus", []string{"Apple", "Pear", "Citrus"}},
		{"commas", "Apple,Pear", []string{"Apple", "Pear"}},
		{"json array", `["A","B"]`, []string{"A", "B"}},
		{"semicolons win over commas", "Red, dark; Green", []string{"Red, dark", "Green"}},
		{"trims and drops blanks", " Apple , ,Pear, ", []string{"Apple", "Pear"}},
		{"broken json degrades to split", `["A","B"`, []string{`["A"`, `"B"`}},
		{"json numbers", `[1, 2.5]`, []string{"1", "2.5"}},
		{"string slice as is", []string{"x", "y"}, []string{"x", "y"}},
		{"empty slice", []string{}, nil},
		{"any slice", []any{"x", nil, 3}, []string{"x", "3"}},
		{"bytes", []byte("a;b"), []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseOptions(tt.raw)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseOptions(%v) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestIsHostOnly(t *testing.T) {
	tests := []struct {
		name string
		q    models.RawQuestion
		want bool
	}{
		{"video regardless of prompt", models.RawQuestion{Type: "video", Prompt: "Watch this"}, true},
		{"audio", models.RawQuestion{Type: "Audio", Prompt: "Listen"}, true},
		{"host prefix", models.RawQuestion{Type: "text", Prompt: "Host: play this"}, true},
		{"host prefix with spaces", models.RawQuestion{Type: "text", Prompt: "  HOST:pour now"}, true},
		{"stored flag", models.RawQuestion{Type: "text", Prompt: "Pour", ForHost: true}, true},
		{"ordinary text", models.RawQuestion{Type: "text", Prompt: "What do you smell?"}, false},
		{"host mid-sentence", models.RawQuestion{Type: "text", Prompt: "Ask your host: why?"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHostOnly(tt.q); got != tt.want {
				t.Errorf("IsHostOnly = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultHelpText(t *testing.T) {
	for _, k := range []models.StepKind{models.StepScale, models.StepMultipleChoice, models.StepAudio, models.StepVideo} {
		if DefaultHelpText(k) == "" {
			t.Errorf("expected a default hint for %s", k)
		}
	}
	if got := DefaultHelpText(models.StepText); got != "" {
		t.Errorf("text questions need no hint, got %q", got)
	}
}
