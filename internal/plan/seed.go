package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tidelab/swell/internal/errors"
	"github.com/tidelab/swell/internal/work"
)

// minDescriptionWords is the floor below which a description is treated as
// too vague to hand to a worker. Single-word or two-word descriptions carry
// no verifiable intent.
const minDescriptionWords = 3

// Seed is one unit of work as it arrives from the planning collaborator,
// before validation. Field names match the seed file schema.
type Seed struct {
	ID                string   `json:"id" yaml:"id"`
	Description       string   `json:"description" yaml:"description"`
	Priority          string   `json:"priority,omitempty" yaml:"priority,omitempty"`
	SuggestedCreates  []string `json:"suggested_creates,omitempty" yaml:"suggested_creates,omitempty"`
	SuggestedModifies []string `json:"suggested_modifies,omitempty" yaml:"suggested_modifies,omitempty"`
	DependsOn         []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// ParseSeedsJSON decodes a seed list from JSON data.
func ParseSeedsJSON(data []byte) ([]Seed, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("seed data is empty")
	}
	var seeds []Seed
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("decode seeds: %w", err)
	}
	return seeds, nil
}

// ParseSeedsYAML decodes a seed list from YAML data.
func ParseSeedsYAML(data []byte) ([]Seed, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("seed data is empty")
	}
	var seeds []Seed
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("decode seeds: %w", err)
	}
	return seeds, nil
}

// LoadSeedFile reads a seed file and decodes it by extension. JSON and YAML
// are supported.
func LoadSeedFile(path string) ([]Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseSeedsJSON(data)
	case ".yaml", ".yml":
		return ParseSeedsYAML(data)
	default:
		return nil, fmt.Errorf("unsupported seed format %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
}

// Load reads a seed file and validates it into work items ready for the
// ledger.
func Load(path string) ([]*work.WorkItem, error) {
	seeds, err := LoadSeedFile(path)
	if err != nil {
		return nil, err
	}
	return BuildItems(seeds)
}

// BuildItems validates a seed list and converts it into work items. It
// returns a PlanningError on the first seed that cannot be admitted, so a
// malformed plan fails before anything is scheduled.
//
// Dependency cycles are deliberately not rejected here. The scheduler
// resolves them by merging the strongly connected items, which is a better
// outcome than bouncing the plan back.
func BuildItems(seeds []Seed) ([]*work.WorkItem, error) {
	if len(seeds) == 0 {
		return nil, errors.NewPlanningError("seed list is empty", nil)
	}

	ids := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return nil, errors.NewPlanningError("seed is missing an id", nil)
		}
		// Ids name artifact files, so they must stay plain.
		if !validItemID(id) {
			return nil, errors.NewPlanningError("id must be a plain name without separators", nil).WithItemID(id)
		}
		if _, dup := ids[id]; dup {
			return nil, errors.NewPlanningError("duplicate seed id", nil).WithItemID(id)
		}
		ids[id] = struct{}{}
	}

	items := make([]*work.WorkItem, 0, len(seeds))
	for _, s := range seeds {
		item, err := buildItem(s, ids)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func buildItem(s Seed, ids map[string]struct{}) (*work.WorkItem, error) {
	id := strings.TrimSpace(s.ID)

	desc := strings.TrimSpace(s.Description)
	if desc == "" {
		return nil, errors.NewPlanningError("description is empty", nil).WithItemID(id)
	}
	if words := len(strings.Fields(desc)); words < minDescriptionWords {
		msg := fmt.Sprintf("description too vague: need at least %d words", minDescriptionWords)
		return nil, errors.NewPlanningError(msg, nil).WithItemID(id)
	}

	item := work.NewItem(id, desc)
	item.IterationIntroduced = 1

	if raw := strings.TrimSpace(s.Priority); raw != "" {
		p, ok := work.ParsePriority(raw)
		if !ok {
			msg := fmt.Sprintf("unknown priority %q (want %s, %s or %s)",
				raw, work.PriorityMust, work.PriorityShould, work.PriorityNice)
			return nil, errors.NewPlanningError(msg, nil).WithItemID(id)
		}
		item.Priority = p
	}

	creates, err := cleanPaths(id, "suggested_creates", s.SuggestedCreates)
	if err != nil {
		return nil, err
	}
	modifies, err := cleanPaths(id, "suggested_modifies", s.SuggestedModifies)
	if err != nil {
		return nil, err
	}
	created := make(map[string]struct{}, len(creates))
	for _, p := range creates {
		created[p] = struct{}{}
	}
	for _, p := range modifies {
		if _, both := created[p]; both {
			msg := fmt.Sprintf("file %s listed as both created and modified", p)
			return nil, errors.NewPlanningError(msg, nil).WithItemID(id)
		}
	}
	item.FilesCreated = creates
	item.FilesModified = modifies

	deps, err := cleanDeps(id, s.DependsOn, ids)
	if err != nil {
		return nil, err
	}
	item.DependsOn = deps

	return item, nil
}

func validItemID(id string) bool {
	if strings.ContainsAny(id, "/\\ \t\r\n") {
		return false
	}
	return !strings.Contains(id, "..")
}

// cleanPaths normalizes a file list to slash-separated relative paths,
// dropping duplicates and preserving order. Absolute paths and paths that
// escape the workspace are planning errors.
func cleanPaths(itemID, field string, raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, errors.NewPlanningError(field+" contains an empty path", nil).WithItemID(itemID)
		}
		cleaned := filepath.ToSlash(filepath.Clean(p))
		if filepath.IsAbs(p) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
			msg := fmt.Sprintf("%s path escapes the workspace: %s", field, p)
			return nil, errors.NewPlanningError(msg, nil).WithItemID(itemID)
		}
		if cleaned == "." {
			msg := fmt.Sprintf("%s path resolves to the workspace root: %s", field, p)
			return nil, errors.NewPlanningError(msg, nil).WithItemID(itemID)
		}
		if _, dup := seen[cleaned]; dup {
			continue
		}
		seen[cleaned] = struct{}{}
		out = append(out, cleaned)
	}
	return out, nil
}

func cleanDeps(itemID string, raw []string, ids map[string]struct{}) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, d := range raw {
		d = strings.TrimSpace(d)
		if d == "" {
			return nil, errors.NewPlanningError("depends_on contains an empty id", nil).WithItemID(itemID)
		}
		if d == itemID {
			return nil, errors.NewPlanningError("item depends on itself", nil).WithItemID(itemID)
		}
		if _, known := ids[d]; !known {
			msg := fmt.Sprintf("depends_on references unknown item %q", d)
			return nil, errors.NewPlanningError(msg, nil).WithItemID(itemID)
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out, nil
}
