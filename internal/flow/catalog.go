package flow

import (
	"cmp"
	"log/slog"
	"slices"
	"strings"

	"github.com/BTreeMap/TastingFlow/internal/models"
)

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AttachQuestions binds question rows to bottles by bottle ID, falling back to the bottle name.
// Rows that bind to no bottle are dropped. Row order is preserved within each bottle.
func AttachQuestions(bottles []models.Bottle, questions []models.RawQuestion) []models.Bottle {
	out := make([]models.Bottle, len(bottles))
	byID := make(map[int64]int, len(bottles))
	byName := make(map[string]int, len(bottles))
	for i, b := range bottles {
		b.Questions = nil
		out[i] = b
		if b.ID != 0 {
			byID[b.ID] = i
		}
		if key := nameKey(b.Name); key != "" {
			if _, exists := byName[key]; !exists {
				byName[key] = i
			}
		}
	}

	unbound := 0
	for _, q := range questions {
		idx, ok := byID[q.BottleID]
		if q.BottleID == 0 || !ok {
			idx, ok = byName[nameKey(q.BottleName)]
		}
		if !ok {
			unbound++
			continue
		}
		out[idx].Questions = append(out[idx].Questions, q)
	}
	if unbound > 0 {
		slog.Debug("AttachQuestions dropped unbound rows", "count", unbound)
	}
	return out
}

// OrderBottles sorts bottles for a session. Bottles with an explicit sequence come first in
// sequence order, then bottles in the order the package lists their names; bottles the package does
// not name go last. The sort is stable.
func OrderBottles(pkg models.Package, bottles []models.Bottle) []models.Bottle {
	positions := make(map[string]int)
	for i, name := range pkg.BottleNames() {
		key := nameKey(name)
		if _, exists := positions[key]; !exists {
			positions[key] = i
		}
	}

	const (
		groupSequenced = iota
		groupListed
		groupUnmatched
	)
	rank := func(b models.Bottle) (int, int) {
		if b.Sequence != nil {
			return groupSequenced, *b.Sequence
		}
		if pos, ok := positions[nameKey(b.Name)]; ok {
			return groupListed, pos
		}
		return groupUnmatched, 0
	}

	out := slices.Clone(bottles)
	slices.SortStableFunc(out, func(a, b models.Bottle) int {
		ga, ka := rank(a)
		gb, kb := rank(b)
		if c := cmp.Compare(ga, gb); c != 0 {
			return c
		}
		return cmp.Compare(ka, kb)
	})
	return out
}
