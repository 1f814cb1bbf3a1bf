package work

import (
	"sort"
	"strings"
)

// Merge builds a composite item from two or more source items. The caller
// records the composite in the ledger, which marks the sources superseded;
// Merge itself only constructs the new record.
//
// The composite takes the union of the sources' file sets and external
// dependencies, the highest priority, and the highest risk tier. A file
// created by any source is a creation for the composite even when another
// source declared a modification of it.
func Merge(id string, sources ...*WorkItem) *WorkItem {
	descs := make([]string, 0, len(sources))
	created := make(map[string]struct{})
	modified := make(map[string]struct{})
	deps := make(map[string]struct{})
	internal := make(map[string]struct{}, len(sources))

	for _, src := range sources {
		internal[src.ID] = struct{}{}
	}

	merged := NewItem(id, "")
	merged.Priority = PriorityNice
	merged.RiskRationale = "merged from conflicting or cyclic items"

	for _, src := range sources {
		if d := strings.TrimSpace(src.Description); d != "" {
			descs = append(descs, d)
		}
		for _, f := range src.FilesCreated {
			created[f] = struct{}{}
		}
		for _, f := range src.FilesModified {
			modified[f] = struct{}{}
		}
		for _, dep := range src.DependsOn {
			if _, ok := internal[dep]; !ok {
				deps[dep] = struct{}{}
			}
		}
		if src.Priority.Weight() > merged.Priority.Weight() {
			merged.Priority = src.Priority
		}
		if src.RiskTier > merged.RiskTier {
			merged.RiskTier = src.RiskTier
		}
		if src.IterationIntroduced > merged.IterationIntroduced {
			merged.IterationIntroduced = src.IterationIntroduced
		}
	}

	merged.Description = strings.Join(descs, "; ")
	merged.FilesCreated = sortedKeys(created)
	for f := range created {
		delete(modified, f)
	}
	merged.FilesModified = sortedKeys(modified)
	merged.DependsOn = sortedKeys(deps)
	return merged
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
