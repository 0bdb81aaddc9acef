// Package flow turns a tasting package into an ordered survey and walks participants through it.
//
// The pieces are leaf-first: the normalizer maps stored question rows onto the closed step kind
// set, the assembler builds the step sequence for a list of bottles, the navigator holds the cursor,
// and the answer store collects what the participant enters along the way.
package flow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BTreeMap/TastingFlow/internal/models"
)

// HostPrefix marks a prompt that only the tasting's host should see.
const HostPrefix = "host:"

// typeAliases maps normalized stored labels onto canonical kinds.
var typeAliases = map[string]models.StepKind{
	"multiple_choice":    models.StepMultipleChoice,
	"checkbox":           models.StepMultipleChoice,
	"1_10_sliding_scale": models.StepScale,
	"sliding_scale":      models.StepScale,
	"scale":              models.StepScale,
	"rating":             models.StepScale,
	"number":             models.StepScale,
	"text":               models.StepText,
	"textarea":           models.StepText,
	"string":             models.StepText,
	"audio":              models.StepAudio,
	"video":              models.StepVideo,
	"divider":            models.StepDivider,
	"signin":             models.StepSignIn,
	"sign_in":            models.StepSignIn,
	"interlude":          models.StepInterlude,
	"thanks":             models.StepThanks,
}

// canonicalLabel lowercases a label and folds spaces and hyphens to underscores.
func canonicalLabel(raw string) string {
	label := strings.ToLower(strings.TrimSpace(raw))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(label)
}

// NormalizeType maps a stored question type label onto a canonical step kind.
// Unrecognized labels become text.
func NormalizeType(raw string) models.StepKind {
	if kind, ok := typeAliases[canonicalLabel(raw)]; ok {
		return kind
	}
	return models.StepText
}

// IsInfoType reports whether the label marks a metadata row rather than a tasting question.
func IsInfoType(raw string) bool {
	return canonicalLabel(raw) == "info"
}

// ParseOptions decodes stored choices into an option list.
// Strings are tried as a JSON array first, then split on ';' when one is present, else on ','.
// It returns nil when there is nothing to offer and never fails.
func ParseOptions(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case []string:
		if len(v) == 0 {
			return nil
		}
		return v
	case []any:
		return stringifyAll(v)
	case []byte:
		return parseOptionString(string(v))
	case string:
		return parseOptionString(v)
	default:
		return parseOptionString(fmt.Sprint(v))
	}
}

func parseOptionString(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var decoded []any
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			return stringifyAll(decoded)
		}
	}
	sep := ","
	if strings.Contains(s, ";") {
		sep = ";"
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		if opt := strings.TrimSpace(part); opt != "" {
			out = append(out, opt)
		}
	}
	return out
}

func stringifyAll(items []any) []string {
	var out []string
	for _, item := range items {
		if item == nil {
			continue
		}
		var opt string
		if s, ok := item.(string); ok {
			opt = strings.TrimSpace(s)
		} else {
			opt = strings.TrimSpace(fmt.Sprint(item))
		}
		if opt != "" {
			out = append(out, opt)
		}
	}
	return out
}

// IsHostOnly reports whether a question is meant for the host: media messages, prompts starting
// with "host:", or rows the store already flagged.
func IsHostOnly(q models.RawQuestion) bool {
	if q.ForHost {
		return true
	}
	switch NormalizeType(q.Type) {
	case models.StepAudio, models.StepVideo:
		return true
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(q.Prompt)), HostPrefix)
}

// DefaultHelpText is the hint shown under a question whose row carries none.
func DefaultHelpText(kind models.StepKind) string {
	switch kind {
	case models.StepScale:
		return "Slide from 1 (low) to 10 (high)."
	case models.StepMultipleChoice:
		return "Select all that apply."
	case models.StepAudio:
		return "Play this recording for the group."
	case models.StepVideo:
		return "Play this video for the group."
	default:
		return ""
	}
}
