package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BTreeMap/TastingFlow/internal/flow"
	"github.com/BTreeMap/TastingFlow/internal/models"
	"gopkg.in/yaml.v3"
)

// CatalogFile is the YAML layout accepted by ImportCatalog.
//
//	packages:
//	  - name: Duo
//	    bottles: [Malbec, Rioja]
//	bottles:
//	  - name: Malbec
//	    questions:
//	      - text: Dominant fruit?
//	        type: multiple_choice
//	        choices: [Plum, Fig]
type CatalogFile struct {
	Packages []CatalogPackage `yaml:"packages"`
	Bottles  []CatalogBottle  `yaml:"bottles"`
}

type CatalogPackage struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Bottles     []string `yaml:"bottles"`
}

type CatalogBottle struct {
	Name      string            `yaml:"name"`
	Sequence  *int              `yaml:"sequence"`
	Questions []CatalogQuestion `yaml:"questions"`
}

type CatalogQuestion struct {
	Text     string `yaml:"text"`
	Type     string `yaml:"type"`
	Choices  any    `yaml:"choices"`
	HelpText string `yaml:"help_text"`
	MediaURL string `yaml:"media_url"`
	ForHost  bool   `yaml:"for_host"`
}

// ImportStats counts the rows written by ImportCatalog.
type ImportStats struct {
	Packages  int
	Bottles   int
	Questions int
}

// ReadCatalogFile parses a catalog YAML file.
func ReadCatalogFile(path string) (CatalogFile, error) {
	var cf CatalogFile
	data, err := os.ReadFile(path)
	if err != nil {
		return cf, fmt.Errorf("failed to read catalog file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return cf, fmt.Errorf("failed to decode catalog file %s: %w", path, err)
	}
	return cf, nil
}

// ImportCatalog replaces the catalog tables with the contents of cf. Questions are numbered in
// file order within their bottle; for_host and a missing help text are derived the same way the
// flow derives them.
func ImportCatalog(ctx context.Context, st Store, cf CatalogFile) (ImportStats, error) {
	var stats ImportStats
	for _, table := range []Table{TableQuestions, TableBottles, TablePackages} {
		if err := st.DeleteAll(ctx, table); err != nil {
			return stats, err
		}
	}

	for _, p := range cf.Packages {
		if strings.TrimSpace(p.Name) == "" {
			return stats, fmt.Errorf("package %d has no name", stats.Packages+1)
		}
		pkg := models.Package{Name: p.Name, Description: p.Description, Bottles: strings.Join(p.Bottles, ", ")}
		if _, err := st.InsertPackage(ctx, pkg); err != nil {
			return stats, err
		}
		stats.Packages++
	}

	for _, b := range cf.Bottles {
		if strings.TrimSpace(b.Name) == "" {
			return stats, fmt.Errorf("bottle %d has no name", stats.Bottles+1)
		}
		bottle, err := st.InsertBottle(ctx, models.Bottle{Name: b.Name, Sequence: b.Sequence})
		if err != nil {
			return stats, err
		}
		stats.Bottles++
		for i, q := range b.Questions {
			raw := models.RawQuestion{
				BottleID: bottle.ID,
				Prompt:   q.Text,
				Type:     q.Type,
				Choices:  q.Choices,
				HelpText: q.HelpText,
				MediaURL: q.MediaURL,
				ForHost:  q.ForHost,
				Position: i + 1,
			}
			raw.ForHost = flow.IsHostOnly(raw)
			if strings.TrimSpace(raw.HelpText) == "" {
				raw.HelpText = flow.DefaultHelpText(flow.NormalizeType(raw.Type))
			}
			if _, err := st.InsertQuestion(ctx, raw); err != nil {
				return stats, err
			}
			stats.Questions++
		}
	}

	slog.Info("ImportCatalog succeeded", "packages", stats.Packages, "bottles", stats.Bottles, "questions", stats.Questions)
	return stats, nil
}
