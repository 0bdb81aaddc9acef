package flow

import (
	"errors"
	"testing"

	"github.com/BTreeMap/TastingFlow/internal/models"
	"github.com/google/go-cmp/cmp"
)

func kinds(steps []models.Step) []models.StepKind {
	out := make([]models.StepKind, len(steps))
	for i, s := range steps {
		out[i] = s.Kind
	}
	return out
}

func TestAssemble_EndToEndScenario(t *testing.T) {
	bottles := []models.Bottle{
		{ID: 1, Name: "A", Questions: []models.RawQuestion{
			{ID: 10, BottleID: 1, Prompt: "First impressions?", Type: "text"},
			{ID: 11, BottleID: 1, Prompt: "Pick one", Type: "multiple_choice", Choices: "X,Y"},
		}},
		{ID: 2, Name: "B"},
	}

	steps := NewAssembler().Assemble(bottles)

	wantKinds := []models.StepKind{
		models.StepSignIn, models.StepInterlude, models.StepText,
		models.StepMultipleChoice, models.StepInterlude, models.StepThanks,
	}
	if diff := cmp.Diff(wantKinds, kinds(steps)); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"X", "Y"}, steps[3].Options); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
	if steps[1].Prompt != "Now let's taste bottle #1: A" || steps[4].Prompt != "Now let's taste bottle #2: B" {
		t.Errorf("unexpected interlude prompts: %q, %q", steps[1].Prompt, steps[4].Prompt)
	}
	for i, ordinal := range []int{0, 1, 1, 1, 2, 0} {
		if steps[i].BottleOrdinal != ordinal {
			t.Errorf("step %d: expected ordinal %d, got %d", i, ordinal, steps[i].BottleOrdinal)
		}
	}
	if err := ValidateSequence(steps); err != nil {
		t.Errorf("assembled sequence invalid: %v", err)
	}
}

func TestAssemble_StepCountAndIDs(t *testing.T) {
	bottles := []models.Bottle{
		{Name: "One", Questions: []models.RawQuestion{
			{Prompt: "a", Type: "text"},
			{Prompt: "about this tasting", Type: "info"},
			{Prompt: "b", Type: "scale"},
			{Prompt: "  ", Type: "text"},
			{Prompt: "", Type: "divider"},
		}},
		{Name: "Two", Questions: []models.RawQuestion{
			{Prompt: "c", Type: "thanks"},
			{Prompt: "d", Type: "video", MediaURL: "https://example.com/v.mp4"},
		}},
		{Name: "Three"},
	}

	steps := NewAssembler().Assemble(bottles)

	// signin + 3 interludes + (a, b, divider) + (d) + thanks
	if len(steps) != 1+3+3+1+1 {
		t.Fatalf("expected 9 steps, got %d: %v", len(steps), kinds(steps))
	}
	if steps[0].ID != SignInStepID || steps[len(steps)-1].ID != ThanksStepID {
		t.Errorf("unexpected structural IDs %d/%d", steps[0].ID, steps[len(steps)-1].ID)
	}
	seen := make(map[int]bool)
	for i, s := range steps {
		if seen[s.ID] {
			t.Errorf("duplicate id %d", s.ID)
		}
		seen[s.ID] = true
		if i > 0 && s.ID <= steps[i-1].ID {
			t.Errorf("ids not increasing at %d: %d after %d", i, s.ID, steps[i-1].ID)
		}
	}
	video := steps[len(steps)-3]
	if video.Kind != models.StepVideo || !video.HostOnly || video.MediaURL == "" {
		t.Errorf("expected host-only video with media, got %+v", video)
	}
}

func TestAssemble_IsStableAcrossRuns(t *testing.T) {
	bottles := []models.Bottle{{Name: "A", Questions: []models.RawQuestion{{Prompt: "q", Type: "text"}}}}
	a := NewAssembler()
	if diff := cmp.Diff(a.Assemble(bottles), a.Assemble(bottles)); diff != "" {
		t.Errorf("assembly not deterministic:\n%s", diff)
	}
}

func TestAssemble_MultipleChoiceAlwaysHasOptions(t *testing.T) {
	bottles := []models.Bottle{{Name: "A", Questions: []models.RawQuestion{
		{Prompt: "Pick", Type: "Multiple Choice"},
		{Prompt: "Free text", Type: "text", Choices: "ignored,here"},
	}}}
	steps := NewAssembler().Assemble(bottles)
	mc := steps[2]
	if mc.Options == nil {
		t.Fatal("multiple choice step must carry a non-nil option list")
	}
	if steps[3].Options != nil {
		t.Errorf("text step should not carry options, got %v", steps[3].Options)
	}
}

func TestAssemble_Dedupe(t *testing.T) {
	bottles := []models.Bottle{
		{Name: "A", Questions: []models.RawQuestion{
			{Prompt: "Aroma?", Type: "text"},
			{Prompt: " aroma? ", Type: "text"},
		}},
		{Name: "B", Questions: []models.RawQuestion{{Prompt: "Aroma?", Type: "text"}}},
	}

	if got := len(NewAssembler().Assemble(bottles)); got != 7 {
		t.Errorf("without dedupe expected 7 steps, got %d", got)
	}
	// the same prompt on a different bottle is not a duplicate
	if got := len(NewAssembler(WithDedupe(true)).Assemble(bottles)); got != 6 {
		t.Errorf("with dedupe expected 6 steps, got %d", got)
	}
}

func TestAssemble_EmptyUsesFallback(t *testing.T) {
	custom := []models.Step{
		{ID: 1, Kind: models.StepSignIn, Prompt: "hi"},
		{ID: 2, Kind: models.StepThanks, Prompt: "bye"},
	}
	steps := NewAssembler(WithFallback(custom)).Assemble(nil)
	if diff := cmp.Diff(custom, steps); diff != "" {
		t.Errorf("fallback mismatch (-want +got):\n%s", diff)
	}

	def := NewAssembler().Assemble(nil)
	if def[0].Kind != models.StepSignIn || def[len(def)-1].Kind != models.StepThanks {
		t.Errorf("default fallback must start with signin and end with thanks: %v", kinds(def))
	}
}

func TestAssemble_FallbackIsCopied(t *testing.T) {
	a := NewAssembler()
	first := a.Fallback()
	first[0].Prompt = "mutated"
	for i := range first {
		if first[i].Options != nil {
			first[i].Options[0] = "mutated"
		}
	}
	second := a.Fallback()
	if second[0].Prompt == "mutated" {
		t.Error("fallback prompt leaked between callers")
	}
	for _, s := range second {
		if len(s.Options) > 0 && s.Options[0] == "mutated" {
			t.Error("fallback options leaked between callers")
		}
	}
}

func TestDefaultStepsAreValid(t *testing.T) {
	if err := ValidateSequence(DefaultSteps()); err != nil {
		t.Fatalf("embedded fallback invalid: %v", err)
	}
}

func TestValidateSequence_Rejects(t *testing.T) {
	signin := models.Step{ID: 1, Kind: models.StepSignIn}
	thanks := models.Step{ID: 99999, Kind: models.StepThanks}
	tests := map[string][]models.Step{
		"too short":        {signin},
		"no signin":        {{ID: 1, Kind: models.StepText, BottleOrdinal: 1}, thanks},
		"no thanks":        {signin, {ID: 2, Kind: models.StepInterlude, BottleOrdinal: 1}},
		"ids not rising":   {signin, {ID: 1, Kind: models.StepInterlude, BottleOrdinal: 1}, thanks},
		"orphan question":  {signin, {ID: 5, Kind: models.StepText, BottleOrdinal: 1}, thanks},
		"wrong ordinal":    {signin, {ID: 5, Kind: models.StepInterlude, BottleOrdinal: 1}, {ID: 6, Kind: models.StepText, BottleOrdinal: 2}, thanks},
		"mc no options":    {signin, {ID: 5, Kind: models.StepInterlude, BottleOrdinal: 1}, {ID: 6, Kind: models.StepMultipleChoice, BottleOrdinal: 1}, thanks},
		"repeated bottle":  {signin, {ID: 5, Kind: models.StepInterlude, BottleOrdinal: 1}, {ID: 6, Kind: models.StepInterlude, BottleOrdinal: 1}, thanks},
		"unknown kind":     {signin, {ID: 5, Kind: "info"}, thanks},
		"second signin":    {signin, {ID: 5, Kind: models.StepSignIn}, thanks},
	}
	for name, steps := range tests {
		t.Run(name, func(t *testing.T) {
			if err := ValidateSequence(steps); !errors.Is(err, ErrInvalidSequence) {
				t.Errorf("expected ErrInvalidSequence, got %v", err)
			}
		})
	}
}

func TestAttachQuestions(t *testing.T) {
	bottles := []models.Bottle{{ID: 1, Name: "Malbec"}, {ID: 2, Name: "Rioja"}}
	questions := []models.RawQuestion{
		{ID: 1, BottleID: 2, Prompt: "by id"},
		{ID: 2, BottleName: " malbec ", Prompt: "by name"},
		{ID: 3, Prompt: "unbound info", Type: "info"},
		{ID: 4, BottleID: 99, BottleName: "Rioja", Prompt: "stale id, known name"},
	}
	got := AttachQuestions(bottles, questions)
	if len(got[0].Questions) != 1 || got[0].Questions[0].ID != 2 {
		t.Errorf("malbec questions wrong: %+v", got[0].Questions)
	}
	if len(got[1].Questions) != 2 || got[1].Questions[0].ID != 1 || got[1].Questions[1].ID != 4 {
		t.Errorf("rioja questions wrong: %+v", got[1].Questions)
	}
	if bottles[0].Questions != nil {
		t.Error("input bottles must not be modified")
	}
}

func TestOrderBottles(t *testing.T) {
	seq := func(n int) *int { return &n }
	pkg := models.Package{Bottles: "Chablis, Malbec, Rioja"}
	bottles := []models.Bottle{
		{Name: "Stranger"},
		{Name: "rioja"},
		{Name: "Malbec"},
		{Name: "Late", Sequence: seq(2)},
		{Name: "Other stranger"},
		{Name: "Chablis"},
		{Name: "Early", Sequence: seq(1)},
	}
	got := OrderBottles(pkg, bottles)
	var names []string
	for _, b := range got {
		names = append(names, b.Name)
	}
	want := []string{"Early", "Late", "Chablis", "Malbec", "rioja", "Stranger", "Other stranger"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestAssemble_IDsStayBelowThanks(t *testing.T) {
	lastQuestion := StepIDBase + MaxBottles*BottleIDStride + MaxQuestionsPerBottle
	if lastQuestion >= ThanksStepID {
		t.Fatalf("bottle %d question IDs reach %d, not below thanks %d", MaxBottles, lastQuestion, ThanksStepID)
	}

	a := NewAssembler()
	a.maxBottles = 2
	bottles := []models.Bottle{
		{ID: 1, Name: "A", Questions: []models.RawQuestion{{ID: 10, BottleID: 1, Prompt: "Nose?", Type: "text"}}},
		{ID: 2, Name: "B"},
		{ID: 3, Name: "C"},
	}
	steps := a.Assemble(bottles)
	for _, s := range steps {
		if s.BottleName == "C" {
			t.Errorf("bottle past the limit was assembled: %+v", s)
		}
	}
	for i := 1; i < len(steps); i++ {
		if steps[i].ID <= steps[i-1].ID {
			t.Fatalf("IDs not strictly increasing at %d: %d then %d", i, steps[i-1].ID, steps[i].ID)
		}
	}
	if last := steps[len(steps)-1]; last.Kind != models.StepThanks || last.ID != ThanksStepID {
		t.Errorf("expected thanks last, got %+v", last)
	}
}
