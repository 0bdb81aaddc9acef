package flow

import (
	"log/slog"

	"github.com/BTreeMap/TastingFlow/internal/models"
)

// Navigator holds the cursor into an assembled step sequence.
// Moves saturate at both ends. The first arrival on the last step is reported once so the
// caller can submit exactly one time, however often the participant comes back to it.
type Navigator struct {
	steps    []models.Step
	cursor   int
	finished bool
}

// NewNavigator starts at the first step of steps.
func NewNavigator(steps []models.Step) *Navigator {
	return &Navigator{steps: steps}
}

// Cursor returns the current index.
func (n *Navigator) Cursor() int {
	return n.cursor
}

// Len returns the number of steps.
func (n *Navigator) Len() int {
	return len(n.steps)
}

// Steps returns the sequence being navigated. Callers must not modify it.
func (n *Navigator) Steps() []models.Step {
	return n.steps
}

// Current returns the step under the cursor; ok is false for an empty sequence.
func (n *Navigator) Current() (models.Step, bool) {
	if len(n.steps) == 0 {
		return models.Step{}, false
	}
	return n.steps[n.cursor], true
}

// AtEnd reports whether the cursor is on the terminal step.
func (n *Navigator) AtEnd() bool {
	return len(n.steps) > 0 && n.cursor == len(n.steps)-1
}

// Finished reports whether the terminal step has ever been entered.
func (n *Navigator) Finished() bool {
	return n.finished
}

// Advance moves one step forward, staying put on the last step.
// It returns true only on the first arrival at the terminal step.
func (n *Navigator) Advance() bool {
	if len(n.steps) == 0 {
		return false
	}
	if n.cursor < len(n.steps)-1 {
		n.cursor++
	}
	return n.markFinished()
}

// Retreat moves one step back, staying put on the first step.
func (n *Navigator) Retreat() {
	if n.cursor > 0 {
		n.cursor--
	}
}

// JumpTo places the cursor at index, clamped to the sequence bounds.
// Like Advance it reports the first arrival at the terminal step.
func (n *Navigator) JumpTo(index int) bool {
	if len(n.steps) == 0 {
		return false
	}
	n.cursor = max(0, min(index, len(n.steps)-1))
	return n.markFinished()
}

func (n *Navigator) markFinished() bool {
	if !n.AtEnd() || n.finished {
		return false
	}
	n.finished = true
	slog.Debug("Navigator reached terminal step", "cursor", n.cursor)
	return true
}
