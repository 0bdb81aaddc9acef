package models

import "encoding/json"

// StepKind is the closed set of step types the rendering layer understands.
type StepKind string

const (
	StepSignIn         StepKind = "signin"
	StepInterlude      StepKind = "interlude"
	StepText           StepKind = "text"
	StepScale          StepKind = "scale"
	StepMultipleChoice StepKind = "multiple_choice"
	StepAudio          StepKind = "audio"
	StepVideo          StepKind = "video"
	StepDivider        StepKind = "divider"
	StepThanks         StepKind = "thanks"
)

// AllStepKinds returns every StepKind in a stable order.
func AllStepKinds() []StepKind {
	return []StepKind{
		StepSignIn, StepInterlude, StepText, StepScale, StepMultipleChoice,
		StepAudio, StepVideo, StepDivider, StepThanks,
	}
}

// IsValidStepKind checks if the given kind belongs to the closed set.
func IsValidStepKind(k StepKind) bool {
	switch k {
	case StepSignIn, StepInterlude, StepText, StepScale, StepMultipleChoice,
		StepAudio, StepVideo, StepDivider, StepThanks:
		return true
	default:
		return false
	}
}

// IsStructural reports whether the kind frames the flow rather than asking about a bottle.
func (k StepKind) IsStructural() bool {
	return k == StepSignIn || k == StepInterlude || k == StepThanks
}

// Step is one screen of the survey.
// BottleOrdinal is the 1-based position of the bottle within the session, zero for signin and thanks.
type Step struct {
	ID            int      `json:"id" yaml:"id"`
	Kind          StepKind `json:"kind" yaml:"kind"`
	Prompt        string   `json:"prompt" yaml:"prompt"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	Options       []string `json:"options,omitempty" yaml:"options,omitempty"`
	BottleOrdinal int      `json:"bottle_ordinal,omitempty" yaml:"bottle_ordinal,omitempty"`
	BottleName    string   `json:"bottle_name,omitempty" yaml:"bottle_name,omitempty"`
	HostOnly      bool     `json:"host_only,omitempty" yaml:"host_only,omitempty"`
	MediaURL      string   `json:"media_url,omitempty" yaml:"media_url,omitempty"`
}

// MarshalJSON always writes options for multiple choice steps, as an empty list when there are
// none. Other kinds omit it when unset.
func (s Step) MarshalJSON() ([]byte, error) {
	type plain Step
	if s.Kind != StepMultipleChoice {
		return json.Marshal(plain(s))
	}
	options := s.Options
	if options == nil {
		options = []string{}
	}
	return json.Marshal(struct {
		plain
		Options []string `json:"options"`
	}{plain(s), options})
}
