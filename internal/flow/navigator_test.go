package flow

import (
	"testing"

	"github.com/BTreeMap/TastingFlow/internal/models"
)

func threeSteps() []models.Step {
	return []models.Step{
		{ID: 1, Kind: models.StepSignIn},
		{ID: 1100, Kind: models.StepInterlude, BottleOrdinal: 1},
		{ID: ThanksStepID, Kind: models.StepThanks},
	}
}

func TestNavigator_Saturates(t *testing.T) {
	n := NewNavigator(threeSteps())

	n.Retreat()
	if n.Cursor() != 0 {
		t.Errorf("retreat from start moved cursor to %d", n.Cursor())
	}

	n.Advance()
	if n.Advance() != true {
		t.Error("expected first arrival at thanks to be reported")
	}
	if !n.AtEnd() {
		t.Fatal("expected cursor on terminal step")
	}
	if n.Advance() {
		t.Error("advance on terminal step must not report arrival again")
	}
	if n.Cursor() != 2 {
		t.Errorf("advance past end moved cursor to %d", n.Cursor())
	}
}

func TestNavigator_FinishReportedOnce(t *testing.T) {
	n := NewNavigator(threeSteps())
	arrivals := 0
	for i := 0; i < 3; i++ {
		for n.Cursor() < n.Len()-1 {
			if n.Advance() {
				arrivals++
			}
		}
		n.Retreat()
	}
	if arrivals != 1 {
		t.Errorf("expected exactly one arrival, got %d", arrivals)
	}
	if !n.Finished() {
		t.Error("expected navigator to be finished")
	}
}

func TestNavigator_JumpTo(t *testing.T) {
	n := NewNavigator(threeSteps())
	if n.JumpTo(-4) || n.Cursor() != 0 {
		t.Errorf("jump below range should clamp to 0, got %d", n.Cursor())
	}
	if !n.JumpTo(50) || n.Cursor() != 2 {
		t.Errorf("jump above range should clamp to last and report arrival, got %d", n.Cursor())
	}
	n.JumpTo(1)
	cur, ok := n.Current()
	if !ok || cur.Kind != models.StepInterlude {
		t.Errorf("expected interlude, got %+v", cur)
	}
	if n.Advance() {
		t.Error("terminal step was already entered via jump")
	}
}

func TestNavigator_Empty(t *testing.T) {
	n := NewNavigator(nil)
	if n.Advance() || n.JumpTo(3) {
		t.Error("empty navigator must never report arrival")
	}
	n.Retreat()
	if _, ok := n.Current(); ok {
		t.Error("empty navigator has no current step")
	}
	if n.AtEnd() {
		t.Error("empty navigator is not at end")
	}
}
