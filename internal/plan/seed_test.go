package plan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidelab/swell/internal/errors"
	"github.com/tidelab/swell/internal/work"
)

func TestParseSeedsJSON(t *testing.T) {
	data := []byte(`[
  {
    "id": "auth-tokens",
    "description": "rotate signing keys for session tokens",
    "priority": "P1",
    "suggested_creates": ["internal/auth/rotation.go"],
    "suggested_modifies": ["internal/auth/keys.go"],
    "depends_on": ["auth-config"]
  },
  {"id": "auth-config", "description": "introduce a rotation config section"}
]`)

	seeds, err := ParseSeedsJSON(data)
	if err != nil {
		t.Fatalf("ParseSeedsJSON() error = %v", err)
	}
	if len(seeds) != 2 {
		t.Fatalf("len(seeds) = %d, want 2", len(seeds))
	}

	got := seeds[0]
	if got.ID != "auth-tokens" {
		t.Errorf("ID = %q, want %q", got.ID, "auth-tokens")
	}
	if got.Priority != "P1" {
		t.Errorf("Priority = %q, want %q", got.Priority, "P1")
	}
	if len(got.SuggestedCreates) != 1 || got.SuggestedCreates[0] != "internal/auth/rotation.go" {
		t.Errorf("SuggestedCreates = %v", got.SuggestedCreates)
	}
	if len(got.SuggestedModifies) != 1 || got.SuggestedModifies[0] != "internal/auth/keys.go" {
		t.Errorf("SuggestedModifies = %v", got.SuggestedModifies)
	}
	if len(got.DependsOn) != 1 || got.DependsOn[0] != "auth-config" {
		t.Errorf("DependsOn = %v", got.DependsOn)
	}
}

func TestParseSeedsYAML(t *testing.T) {
	data := []byte(`- id: auth-tokens
  description: rotate signing keys for session tokens
  priority: P2
  suggested_modifies:
    - internal/auth/keys.go
  depends_on: [auth-config]
- id: auth-config
  description: introduce a rotation config section
`)

	seeds, err := ParseSeedsYAML(data)
	if err != nil {
		t.Fatalf("ParseSeedsYAML() error = %v", err)
	}
	if len(seeds) != 2 {
		t.Fatalf("len(seeds) = %d, want 2", len(seeds))
	}
	if seeds[0].ID != "auth-tokens" {
		t.Errorf("ID = %q, want %q", seeds[0].ID, "auth-tokens")
	}
	if seeds[0].Priority != "P2" {
		t.Errorf("Priority = %q, want %q", seeds[0].Priority, "P2")
	}
	if len(seeds[1].DependsOn) != 0 {
		t.Errorf("DependsOn = %v, want empty", seeds[1].DependsOn)
	}
}

func TestParseSeeds_EmptyPayload(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("  \n\t")} {
		if _, err := ParseSeedsJSON(data); err == nil {
			t.Errorf("ParseSeedsJSON(%q) succeeded, want error", data)
		}
		if _, err := ParseSeedsYAML(data); err == nil {
			t.Errorf("ParseSeedsYAML(%q) succeeded, want error", data)
		}
	}
}

func TestParseSeeds_Malformed(t *testing.T) {
	if _, err := ParseSeedsJSON([]byte("{not json")); err == nil {
		t.Error("ParseSeedsJSON() succeeded on malformed input")
	}
	if _, err := ParseSeedsYAML([]byte("[unclosed")); err == nil {
		t.Error("ParseSeedsYAML() succeeded on malformed input")
	}
}

func TestLoadSeedFile(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"seeds.json": `[{"id": "a", "description": "retire the legacy endpoint"}]`,
		"seeds.yaml": "- id: a\n  description: retire the legacy endpoint\n",
		"seeds.yml":  "- id: a\n  description: retire the legacy endpoint\n",
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			seeds, err := LoadSeedFile(path)
			if err != nil {
				t.Fatalf("LoadSeedFile() error = %v", err)
			}
			if len(seeds) != 1 || seeds[0].ID != "a" {
				t.Errorf("seeds = %+v", seeds)
			}
		})
	}
}

func TestLoadSeedFile_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.txt")
	if err := os.WriteFile(path, []byte("whatever"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadSeedFile(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported seed format") {
		t.Errorf("LoadSeedFile() error = %v, want unsupported format", err)
	}
}

func TestLoadSeedFile_Missing(t *testing.T) {
	_, err := LoadSeedFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadSeedFile() error = %v, want os.ErrNotExist", err)
	}
}

func TestBuildItems_Defaults(t *testing.T) {
	items, err := BuildItems([]Seed{{ID: "auth-config", Description: "introduce a rotation config section"}})
	if err != nil {
		t.Fatalf("BuildItems() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}

	item := items[0]
	if item.Status != work.StatusPending {
		t.Errorf("Status = %v, want %v", item.Status, work.StatusPending)
	}
	if item.Priority != work.PriorityShould {
		t.Errorf("Priority = %v, want %v", item.Priority, work.PriorityShould)
	}
	if item.RiskTier != work.TierUnclassified {
		t.Errorf("RiskTier = %v, want %v", item.RiskTier, work.TierUnclassified)
	}
	if item.IterationIntroduced != 1 {
		t.Errorf("IterationIntroduced = %d, want 1", item.IterationIntroduced)
	}
	if item.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
}

func TestBuildItems_ParsesPriority(t *testing.T) {
	items, err := BuildItems([]Seed{{
		ID:          "auth-config",
		Description: "introduce a rotation config section",
		Priority:    "p1",
	}})
	if err != nil {
		t.Fatalf("BuildItems() error = %v", err)
	}
	if items[0].Priority != work.PriorityMust {
		t.Errorf("Priority = %v, want %v", items[0].Priority, work.PriorityMust)
	}
}

func TestBuildItems_CleansPaths(t *testing.T) {
	items, err := BuildItems([]Seed{{
		ID:          "api-routes",
		Description: "rework the handler registration path",
		SuggestedCreates: []string{
			"./internal/api/../api/handler.go",
			"internal/api/handler.go",
			"docs/routes.md",
		},
		SuggestedModifies: []string{"internal/api/router.go/"},
	}})
	if err != nil {
		t.Fatalf("BuildItems() error = %v", err)
	}

	wantCreates := []string{"internal/api/handler.go", "docs/routes.md"}
	if got := items[0].FilesCreated; len(got) != len(wantCreates) {
		t.Fatalf("FilesCreated = %v, want %v", got, wantCreates)
	} else {
		for i := range wantCreates {
			if got[i] != wantCreates[i] {
				t.Errorf("FilesCreated[%d] = %q, want %q", i, got[i], wantCreates[i])
			}
		}
	}
	if got := items[0].FilesModified; len(got) != 1 || got[0] != "internal/api/router.go" {
		t.Errorf("FilesModified = %v", got)
	}
}

func TestBuildItems_DedupesDependencies(t *testing.T) {
	items, err := BuildItems([]Seed{
		{ID: "base", Description: "extract the shared client interface"},
		{ID: "caller", Description: "route callers through the shared client", DependsOn: []string{"base", "base"}},
	})
	if err != nil {
		t.Fatalf("BuildItems() error = %v", err)
	}
	if got := items[1].DependsOn; len(got) != 1 || got[0] != "base" {
		t.Errorf("DependsOn = %v, want [base]", got)
	}
}

func TestBuildItems_Validation(t *testing.T) {
	desc := "rework the handler registration path"

	tests := []struct {
		name     string
		seeds    []Seed
		wantMsg  string
		wantItem string
	}{
		{"empty list", nil, "seed list is empty", ""},
		{"missing id", []Seed{{Description: desc}}, "missing an id", ""},
		{"id with separator", []Seed{{ID: "internal/auth", Description: desc}}, "plain name", "internal/auth"},
		{"id with dots", []Seed{{ID: "..", Description: desc}}, "plain name", ".."},
		{"id with space", []Seed{{ID: "auth tokens", Description: desc}}, "plain name", "auth tokens"},
		{"duplicate id", []Seed{{ID: "a", Description: desc}, {ID: "a", Description: desc}}, "duplicate seed id", "a"},
		{"empty description", []Seed{{ID: "a"}}, "description is empty", "a"},
		{"vague description", []Seed{{ID: "a", Description: "fix auth"}}, "too vague", "a"},
		{"unknown priority", []Seed{{ID: "a", Description: desc, Priority: "P9"}}, "unknown priority", "a"},
		{"empty created path", []Seed{{ID: "a", Description: desc, SuggestedCreates: []string{" "}}}, "empty path", "a"},
		{"absolute path", []Seed{{ID: "a", Description: desc, SuggestedCreates: []string{"/etc/passwd"}}}, "escapes the workspace", "a"},
		{"escaping path", []Seed{{ID: "a", Description: desc, SuggestedModifies: []string{"pkg/../../secrets.env"}}}, "escapes the workspace", "a"},
		{"root path", []Seed{{ID: "a", Description: desc, SuggestedModifies: []string{"./"}}}, "workspace root", "a"},
		{"create and modify overlap", []Seed{{ID: "a", Description: desc, SuggestedCreates: []string{"x.go"}, SuggestedModifies: []string{"./x.go"}}}, "both created and modified", "a"},
		{"empty dependency", []Seed{{ID: "a", Description: desc, DependsOn: []string{""}}}, "empty id", "a"},
		{"self dependency", []Seed{{ID: "a", Description: desc, DependsOn: []string{"a"}}}, "depends on itself", "a"},
		{"unknown dependency", []Seed{{ID: "a", Description: desc, DependsOn: []string{"ghost"}}}, "unknown item", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildItems(tt.seeds)
			if err == nil {
				t.Fatal("BuildItems() succeeded, want planning error")
			}
			var perr *errors.PlanningError
			if !errors.As(err, &perr) {
				t.Fatalf("error = %v, want *errors.PlanningError", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantMsg)
			}
			if perr.ItemID != tt.wantItem {
				t.Errorf("ItemID = %q, want %q", perr.ItemID, tt.wantItem)
			}
		})
	}
}

// Dependency cycles are admitted on purpose. The scheduler resolves them by
// merging the strongly connected items instead of bouncing the plan.
func TestBuildItems_AllowsCycles(t *testing.T) {
	seeds := []Seed{
		{ID: "a", Description: "extract the shared client interface", DependsOn: []string{"b"}},
		{ID: "b", Description: "move retries into the shared client", DependsOn: []string{"a"}},
	}
	items, err := BuildItems(seeds)
	if err != nil {
		t.Fatalf("BuildItems() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.yaml")
	doc := `- id: auth-config
  description: introduce a rotation config section
  priority: p1
  suggested_creates:
    - internal/auth/rotation.go
- id: auth-tokens
  description: rotate signing keys for session tokens
  suggested_modifies: [internal/auth/keys.go]
  depends_on: [auth-config]
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	items, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].Priority != work.PriorityMust {
		t.Errorf("items[0].Priority = %v, want %v", items[0].Priority, work.PriorityMust)
	}
	if items[1].Priority != work.PriorityShould {
		t.Errorf("items[1].Priority = %v, want %v", items[1].Priority, work.PriorityShould)
	}
	if got := items[1].DependsOn; len(got) != 1 || got[0] != "auth-config" {
		t.Errorf("items[1].DependsOn = %v, want [auth-config]", got)
	}
}
