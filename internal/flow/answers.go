package flow

import (
	"maps"
	"slices"
	"strings"

	"github.com/BTreeMap/TastingFlow/internal/models"
)

// DefaultBottleOrdinal is used when a mutator is called without a bottle ordinal.
const DefaultBottleOrdinal = 1

type bottleRecord struct {
	initialThoughts    string
	rating             int
	fruitFlavors       map[string]struct{}
	acidityRating      int
	additionalThoughts string
}

func newBottleRecord() *bottleRecord {
	return &bottleRecord{
		rating:        models.DefaultRating,
		acidityRating: models.DefaultRating,
		fruitFlavors:  make(map[string]struct{}),
	}
}

func (r *bottleRecord) export() models.BottleAnswers {
	flavors := slices.Sorted(maps.Keys(r.fruitFlavors))
	if flavors == nil {
		flavors = []string{}
	}
	return models.BottleAnswers{
		InitialThoughts:    r.initialThoughts,
		Rating:             r.rating,
		FruitFlavors:       flavors,
		AcidityRating:      r.acidityRating,
		AdditionalThoughts: r.additionalThoughts,
	}
}

// AnswerStore collects a participant's answers keyed by bottle ordinal.
// Every mutator is total: ordinals below 1 mean bottle 1, ratings are clamped, and a bottle's
// record is created on first write.
type AnswerStore struct {
	bottles   map[int]*bottleRecord
	responses map[int][]string
}

// NewAnswerStore creates an empty store.
func NewAnswerStore() *AnswerStore {
	return &AnswerStore{
		bottles:   make(map[int]*bottleRecord),
		responses: make(map[int][]string),
	}
}

func (s *AnswerStore) record(ordinal int) *bottleRecord {
	if ordinal < 1 {
		ordinal = DefaultBottleOrdinal
	}
	rec, ok := s.bottles[ordinal]
	if !ok {
		rec = newBottleRecord()
		s.bottles[ordinal] = rec
	}
	return rec
}

func clampRating(v int) int {
	return max(models.MinRating, min(v, models.MaxRating))
}

// Get returns the answers for a bottle, or the defaults if nothing was written yet.
func (s *AnswerStore) Get(ordinal int) models.BottleAnswers {
	if ordinal < 1 {
		ordinal = DefaultBottleOrdinal
	}
	if rec, ok := s.bottles[ordinal]; ok {
		return rec.export()
	}
	return models.DefaultBottleAnswers()
}

func (s *AnswerStore) SetInitialThoughts(ordinal int, text string) {
	s.record(ordinal).initialThoughts = text
}

func (s *AnswerStore) SetRating(ordinal, rating int) {
	s.record(ordinal).rating = clampRating(rating)
}

func (s *AnswerStore) SetAcidityRating(ordinal, rating int) {
	s.record(ordinal).acidityRating = clampRating(rating)
}

func (s *AnswerStore) SetAdditionalThoughts(ordinal int, text string) {
	s.record(ordinal).additionalThoughts = text
}

// SetFruitFlavors replaces the flavor set. Blank names are ignored.
func (s *AnswerStore) SetFruitFlavors(ordinal int, flavors []string) {
	rec := s.record(ordinal)
	rec.fruitFlavors = make(map[string]struct{}, len(flavors))
	for _, f := range flavors {
		if f = strings.TrimSpace(f); f != "" {
			rec.fruitFlavors[f] = struct{}{}
		}
	}
}

func (s *AnswerStore) AddFruitFlavor(ordinal int, flavor string) {
	if flavor = strings.TrimSpace(flavor); flavor != "" {
		s.record(ordinal).fruitFlavors[flavor] = struct{}{}
	}
}

func (s *AnswerStore) RemoveFruitFlavor(ordinal int, flavor string) {
	delete(s.record(ordinal).fruitFlavors, strings.TrimSpace(flavor))
}

// Apply writes every non-nil field of patch.
func (s *AnswerStore) Apply(ordinal int, patch models.AnswerPatch) {
	if patch.InitialThoughts != nil {
		s.SetInitialThoughts(ordinal, *patch.InitialThoughts)
	}
	if patch.Rating != nil {
		s.SetRating(ordinal, *patch.Rating)
	}
	if patch.FruitFlavors != nil {
		s.SetFruitFlavors(ordinal, *patch.FruitFlavors)
	}
	if patch.AcidityRating != nil {
		s.SetAcidityRating(ordinal, *patch.AcidityRating)
	}
	if patch.AdditionalThoughts != nil {
		s.SetAdditionalThoughts(ordinal, *patch.AdditionalThoughts)
	}
}

// SetResponse records the answer to a dynamic question step. An empty list clears it.
func (s *AnswerStore) SetResponse(stepID int, values []string) {
	if len(values) == 0 {
		delete(s.responses, stepID)
		return
	}
	s.responses[stepID] = slices.Clone(values)
}

// Response returns the recorded answer for a step.
func (s *AnswerStore) Response(stepID int) ([]string, bool) {
	v, ok := s.responses[stepID]
	return slices.Clone(v), ok
}

// Snapshot returns deep copies of everything recorded so far.
func (s *AnswerStore) Snapshot() (map[int]models.BottleAnswers, map[int][]string) {
	answers := make(map[int]models.BottleAnswers, len(s.bottles))
	for ordinal, rec := range s.bottles {
		answers[ordinal] = rec.export()
	}
	responses := make(map[int][]string, len(s.responses))
	for id, v := range s.responses {
		responses[id] = slices.Clone(v)
	}
	return answers, responses
}
