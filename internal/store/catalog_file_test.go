package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/BTreeMap/TastingFlow/internal/flow"
	"github.com/BTreeMap/TastingFlow/internal/models"
)

const sampleCatalog = `
packages:
  - name: Duo
    description: two reds
    bottles: [Malbec, Rioja]
bottles:
  - name: Malbec
    sequence: 1
    questions:
      - text: What do you smell?
        type: text
      - text: Dominant fruit?
        type: multiple_choice
        choices: [Plum, "Fig, dried"]
  - name: Rioja
    questions:
      - text: Pour the second glass
        type: text
        for_host: true
      - text: "Host: read the label aloud"
        type: text
      - text: Winemaker greeting
        type: video
        media_url: https://example.com/hi.mp4
`

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}
	return path
}

func TestImportCatalog(t *testing.T) {
	ctx := context.Background()
	cf, err := ReadCatalogFile(writeCatalog(t, sampleCatalog))
	if err != nil {
		t.Fatalf("ReadCatalogFile: %v", err)
	}

	backends := map[string]Store{"memory": NewInMemoryStore()}
	sqlite, err := NewSQLiteStore(WithSQLiteDSN(filepath.Join(t.TempDir(), "catalog.db")))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer sqlite.Close()
	backends["sqlite"] = sqlite

	for name, st := range backends {
		t.Run(name, func(t *testing.T) {
			// Importing twice must replace, not append.
			for i := 0; i < 2; i++ {
				stats, err := ImportCatalog(ctx, st, cf)
				if err != nil {
					t.Fatalf("ImportCatalog: %v", err)
				}
				if stats != (ImportStats{Packages: 1, Bottles: 2, Questions: 5}) {
					t.Errorf("unexpected stats %+v", stats)
				}
			}

			packages, err := st.ListPackages(ctx)
			if err != nil || len(packages) != 1 || packages[0].Bottles != "Malbec, Rioja" {
				t.Fatalf("unexpected packages %+v %v", packages, err)
			}
			bottles, err := st.ListBottlesByNames(ctx, packages[0].BottleNames())
			if err != nil || len(bottles) != 2 {
				t.Fatalf("unexpected bottles %+v %v", bottles, err)
			}
			ids := []int64{bottles[0].ID, bottles[1].ID}
			questions, err := st.ListQuestionsByBottleIDs(ctx, ids)
			if err != nil || len(questions) != 3 {
				t.Fatalf("unexpected questions %+v %v", questions, err)
			}
			for _, q := range questions {
				if q.Prompt == "Dominant fruit?" && q.Position != 2 {
					t.Errorf("expected position 2, got %d", q.Position)
				}
				if q.Prompt == "Pour the second glass" && !q.ForHost {
					t.Error("for_host lost on import")
				}
				switch q.Prompt {
				case "Host: read the label aloud", "Winemaker greeting":
					if !q.ForHost {
						t.Errorf("%q should be derived host-only", q.Prompt)
					}
				case "What do you smell?":
					if q.ForHost || q.HelpText != "" {
						t.Errorf("plain text question changed on import: %+v", q)
					}
				case "Dominant fruit?":
					if q.HelpText != flow.DefaultHelpText(models.StepMultipleChoice) {
						t.Errorf("expected default help text, got %q", q.HelpText)
					}
				}
			}
		})
	}
}

func TestImportCatalog_RejectsUnnamedRows(t *testing.T) {
	st := NewInMemoryStore()
	cf := CatalogFile{Packages: []CatalogPackage{{Description: "nameless"}}}
	if _, err := ImportCatalog(context.Background(), st, cf); err == nil {
		t.Error("expected an error for a package without a name")
	}
	cf = CatalogFile{Bottles: []CatalogBottle{{Questions: []CatalogQuestion{{Text: "x"}}}}}
	if _, err := ImportCatalog(context.Background(), st, cf); err == nil {
		t.Error("expected an error for a bottle without a name")
	}
}

func TestReadCatalogFile_Errors(t *testing.T) {
	if _, err := ReadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
	if _, err := ReadCatalogFile(writeCatalog(t, "packages: [")); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}
