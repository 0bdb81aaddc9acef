package flow

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/TastingFlow/internal/models"
)

// Notices shown to the participant when demo content replaces the package.
const (
	NoticeFetchFailed    = "We couldn't load this tasting, so you're seeing demo content."
	NoticePackageMissing = "This tasting's package was not found, so you're seeing demo content."
	NoticeNoBottles      = "This package has no bottles yet, so you're seeing demo content."
)

// CatalogReader is the part of the store the loader needs.
type CatalogReader interface {
	GetPackage(ctx context.Context, id int64) (*models.Package, error)
	ListBottlesByNames(ctx context.Context, names []string) ([]models.Bottle, error)
	ListQuestionsByBottleIDs(ctx context.Context, ids []int64) ([]models.RawQuestion, error)
}

// LoadResult is the outcome of loading a package. When Fallback is set, Steps holds the static
// sequence and Notice says why; the caller is expected to show it.
type LoadResult struct {
	Package  *models.Package
	Bottles  []models.Bottle
	Steps    []models.Step
	Fallback bool
	Notice   string
}

// Loader fetches a package's bottles and questions and assembles them into steps.
type Loader struct {
	catalog   CatalogReader
	assembler *Assembler
}

// NewLoader creates a Loader over the given catalog.
func NewLoader(catalog CatalogReader, assembler *Assembler) *Loader {
	if assembler == nil {
		assembler = NewAssembler()
	}
	return &Loader{catalog: catalog, assembler: assembler}
}

// Load never fails: store errors and empty results degrade to the fallback sequence.
func (l *Loader) Load(ctx context.Context, packageID int64) LoadResult {
	slog.Debug("Loader.Load invoked", "packageID", packageID)

	pkg, err := l.catalog.GetPackage(ctx, packageID)
	if err != nil {
		slog.Error("Loader.Load: package fetch failed", "error", err, "packageID", packageID)
		return l.fallback(nil, NoticeFetchFailed)
	}
	if pkg == nil {
		slog.Warn("Loader.Load: package not found", "packageID", packageID)
		return l.fallback(nil, NoticePackageMissing)
	}

	names := pkg.BottleNames()
	if len(names) == 0 {
		slog.Warn("Loader.Load: package lists no bottles", "packageID", packageID)
		return l.fallback(pkg, NoticeNoBottles)
	}
	bottles, err := l.catalog.ListBottlesByNames(ctx, names)
	if err != nil {
		slog.Error("Loader.Load: bottle fetch failed", "error", err, "packageID", packageID)
		return l.fallback(pkg, NoticeFetchFailed)
	}
	if len(bottles) == 0 {
		slog.Warn("Loader.Load: no bottles matched the package list", "packageID", packageID, "names", names)
		return l.fallback(pkg, NoticeNoBottles)
	}

	ids := make([]int64, 0, len(bottles))
	for _, b := range bottles {
		ids = append(ids, b.ID)
	}
	questions, err := l.catalog.ListQuestionsByBottleIDs(ctx, ids)
	if err != nil {
		slog.Error("Loader.Load: question fetch failed", "error", err, "packageID", packageID)
		return l.fallback(pkg, NoticeFetchFailed)
	}

	bottles = OrderBottles(*pkg, AttachQuestions(bottles, questions))
	steps := l.assembler.Assemble(bottles)
	slog.Info("Loader.Load succeeded", "packageID", packageID, "bottles", len(bottles), "questions", len(questions), "steps", len(steps))
	return LoadResult{Package: pkg, Bottles: bottles, Steps: steps}
}

func (l *Loader) fallback(pkg *models.Package, notice string) LoadResult {
	return LoadResult{Package: pkg, Steps: l.assembler.Fallback(), Fallback: true, Notice: notice}
}
