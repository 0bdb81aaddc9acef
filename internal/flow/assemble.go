package flow

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/BTreeMap/TastingFlow/internal/models"
)

// Step identifier scheme. Interludes sit at StepIDBase + ordinal*BottleIDStride and a bottle's
// questions follow at +1, +2, ...; signin and thanks bracket every possible value.
const (
	SignInStepID          = 1
	StepIDBase            = 100
	BottleIDStride        = 1000
	MaxQuestionsPerBottle = BottleIDStride - 1
	ThanksStepID          = math.MaxInt32
	// MaxBottles keeps the last bottle's question IDs below ThanksStepID.
	MaxBottles = (ThanksStepID-StepIDBase)/BottleIDStride - 1
)

// Fixed prompts for the structural steps.
const (
	SignInPrompt    = "Welcome! Sign in to begin the tasting."
	ThanksPrompt    = "Thank you for tasting with us!"
	InterludeFormat = "Now let's taste bottle #%d: %s"
)

// Assembler builds the ordered step sequence for one session.
type Assembler struct {
	dedupe     bool
	fallback   []models.Step
	maxBottles int
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithDedupe drops repeated prompts within a bottle (compared case-insensitively).
func WithDedupe(enabled bool) AssemblerOption {
	return func(a *Assembler) { a.dedupe = enabled }
}

// WithFallback replaces the embedded fallback sequence.
func WithFallback(steps []models.Step) AssemblerOption {
	return func(a *Assembler) { a.fallback = cloneSteps(steps) }
}

// NewAssembler creates an Assembler using the embedded fallback sequence unless overridden.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{fallback: DefaultSteps(), maxBottles: MaxBottles}
	for _, opt := range opts {
		opt(a)
	}
	slog.Debug("Assembler created", "dedupe", a.dedupe, "fallback_steps", len(a.fallback))
	return a
}

// Fallback returns a copy of the static sequence used when nothing can be assembled.
func (a *Assembler) Fallback() []models.Step {
	return cloneSteps(a.fallback)
}

// Assemble produces signin, then an interlude and the surviving questions for each bottle in the
// given order, then thanks. With no bottles it returns the fallback sequence.
func (a *Assembler) Assemble(bottles []models.Bottle) []models.Step {
	if len(bottles) == 0 {
		slog.Warn("Assembler.Assemble: no bottles supplied, using fallback sequence")
		return a.Fallback()
	}

	if len(bottles) > a.maxBottles {
		slog.Warn("Assembler.Assemble: too many bottles, dropping the rest", "bottles", len(bottles), "limit", a.maxBottles)
		bottles = bottles[:a.maxBottles]
	}

	steps := []models.Step{{ID: SignInStepID, Kind: models.StepSignIn, Prompt: SignInPrompt}}
	skipped := 0
	for i, b := range bottles {
		ordinal := i + 1
		base := StepIDBase + ordinal*BottleIDStride
		steps = append(steps, models.Step{
			ID:            base,
			Kind:          models.StepInterlude,
			Prompt:        fmt.Sprintf(InterludeFormat, ordinal, b.Name),
			BottleOrdinal: ordinal,
			BottleName:    b.Name,
		})

		seen := make(map[string]struct{})
		emitted := 0
		for _, q := range b.Questions {
			kind, ok := questionKind(q)
			if !ok {
				skipped++
				continue
			}
			if a.dedupe {
				key := strings.ToLower(strings.TrimSpace(q.Prompt))
				if _, dup := seen[key]; dup {
					skipped++
					continue
				}
				seen[key] = struct{}{}
			}
			if emitted == MaxQuestionsPerBottle {
				slog.Warn("Assembler.Assemble: bottle has too many questions, dropping the rest",
					"bottle", b.Name, "limit", MaxQuestionsPerBottle)
				break
			}
			emitted++
			step := models.Step{
				ID:            base + emitted,
				Kind:          kind,
				Prompt:        q.Prompt,
				Description:   q.HelpText,
				BottleOrdinal: ordinal,
				BottleName:    b.Name,
				HostOnly:      IsHostOnly(q),
				MediaURL:      q.MediaURL,
			}
			if kind == models.StepMultipleChoice {
				step.Options = ParseOptions(q.Choices)
				if step.Options == nil {
					step.Options = []string{}
				}
			}
			steps = append(steps, step)
		}
	}
	steps = append(steps, models.Step{ID: ThanksStepID, Kind: models.StepThanks, Prompt: ThanksPrompt})

	slog.Debug("Assembler.Assemble succeeded", "bottles", len(bottles), "steps", len(steps), "skipped", skipped)
	return steps
}

// questionKind classifies a raw row, reporting false for rows that never become steps:
// info metadata, structural labels, and question kinds without a prompt.
func questionKind(q models.RawQuestion) (models.StepKind, bool) {
	if IsInfoType(q.Type) {
		return "", false
	}
	kind := NormalizeType(q.Type)
	if kind.IsStructural() {
		return "", false
	}
	if kind != models.StepDivider && strings.TrimSpace(q.Prompt) == "" {
		return "", false
	}
	return kind, true
}

func cloneSteps(steps []models.Step) []models.Step {
	if steps == nil {
		return nil
	}
	out := make([]models.Step, len(steps))
	for i, s := range steps {
		if s.Options != nil {
			s.Options = append([]string{}, s.Options...)
		}
		out[i] = s
	}
	return out
}
