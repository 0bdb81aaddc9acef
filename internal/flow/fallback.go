package flow

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/BTreeMap/TastingFlow/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed fallback_steps.yaml
var fallbackYAML []byte

// ErrInvalidSequence is returned when a step list breaks the sequence invariants.
var ErrInvalidSequence = errors.New("invalid step sequence")

// defaultSteps is decoded once at startup; a broken embedded file is a build defect.
var defaultSteps []models.Step

func init() {
	steps, err := decodeSteps(fallbackYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded fallback sequence is invalid: %v", err))
	}
	defaultSteps = steps
}

// DefaultSteps returns a copy of the embedded demo sequence.
func DefaultSteps() []models.Step {
	return cloneSteps(defaultSteps)
}

// decodeSteps parses a YAML step list and checks it is a usable sequence.
func decodeSteps(data []byte) ([]models.Step, error) {
	var steps []models.Step
	if err := yaml.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps: %w", err)
	}
	for i := range steps {
		if steps[i].Kind == models.StepMultipleChoice && steps[i].Options == nil {
			steps[i].Options = []string{}
		}
	}
	if err := ValidateSequence(steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// ValidateSequence checks that steps open with one signin, close with one thanks, keep each
// bottle's steps together behind its interlude, use strictly increasing IDs, and give every
// multiple_choice step an option list.
func ValidateSequence(steps []models.Step) error {
	if len(steps) < 2 {
		return fmt.Errorf("%w: need at least signin and thanks, got %d steps", ErrInvalidSequence, len(steps))
	}
	if steps[0].Kind != models.StepSignIn {
		return fmt.Errorf("%w: first step is %q, not signin", ErrInvalidSequence, steps[0].Kind)
	}
	if last := steps[len(steps)-1]; last.Kind != models.StepThanks {
		return fmt.Errorf("%w: last step is %q, not thanks", ErrInvalidSequence, last.Kind)
	}

	seenOrdinals := make(map[int]bool)
	current := 0
	for i, s := range steps {
		if !models.IsValidStepKind(s.Kind) {
			return fmt.Errorf("%w: step %d has unknown kind %q", ErrInvalidSequence, s.ID, s.Kind)
		}
		if i > 0 && s.ID <= steps[i-1].ID {
			return fmt.Errorf("%w: step id %d does not increase after %d", ErrInvalidSequence, s.ID, steps[i-1].ID)
		}
		switch s.Kind {
		case models.StepSignIn:
			if i != 0 {
				return fmt.Errorf("%w: extra signin step at index %d", ErrInvalidSequence, i)
			}
		case models.StepThanks:
			if i != len(steps)-1 {
				return fmt.Errorf("%w: extra thanks step at index %d", ErrInvalidSequence, i)
			}
		case models.StepInterlude:
			if s.BottleOrdinal <= 0 || seenOrdinals[s.BottleOrdinal] {
				return fmt.Errorf("%w: interlude %d has bad bottle ordinal %d", ErrInvalidSequence, s.ID, s.BottleOrdinal)
			}
			seenOrdinals[s.BottleOrdinal] = true
			current = s.BottleOrdinal
		default:
			if current == 0 || s.BottleOrdinal != current {
				return fmt.Errorf("%w: step %d is not inside its bottle's block", ErrInvalidSequence, s.ID)
			}
			if s.Kind == models.StepMultipleChoice && s.Options == nil {
				return fmt.Errorf("%w: multiple_choice step %d has no options", ErrInvalidSequence, s.ID)
			}
		}
	}
	return nil
}
