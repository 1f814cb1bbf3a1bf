// Package risk assigns each work item a tier from 0 to 3 that scales
// verification depth and rollback rigor downstream. Classification runs a
// decision tree top-down over the item's touched paths, its description,
// and its coupling to other items; the first matching tier wins.
package risk

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/tidelab/swell/internal/config"
	"github.com/tidelab/swell/internal/errors"
	"github.com/tidelab/swell/internal/work"
)

const defaultCoupledThreshold = 3

// Keyword tables driving the description heuristics. Single words match
// whole tokens of the description; phrases match as substrings. All
// matching is case-insensitive.
var (
	irreversibleKeywords = []string{
		"migration", "schema change", "data transformation",
		"breaking change", "irreversible", "one way", "delete",
	}
	complianceKeywords = []string{
		"gdpr", "data protection", "compliance", "audit", "regulation", "legal",
	}
	securityKeywords = []string{
		"auth", "password", "token", "session", "encryption",
		"security", "permission", "access", "admin",
	}
	persistedDataKeywords = []string{
		"privacy", "pii", "persisted", "user data", "database", "storage",
	}
	userVisibleKeywords = []string{
		"ui", "frontend", "layout", "accessibility", "user-facing",
		"error message", "output format",
	}
	surfaceKeywords = []string{
		"api", "interface", "contract", "breaking", "deprecated",
	}
)

// Assessment is the outcome of classifying one work item.
type Assessment struct {
	Tier      work.RiskTier
	Rationale string
}

// Classifier evaluates work items against path rules and description
// heuristics. It is stateless after construction and safe for concurrent
// use.
type Classifier struct {
	tier3Paths       []glob.Glob
	tier2Paths       []glob.Glob
	tier1Paths       []glob.Glob
	coupledThreshold int
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithCoupledThreshold sets how many graph neighbors (dependencies plus
// dependents) an item needs before coupling alone raises it to tier 1.
func WithCoupledThreshold(n int) Option {
	return func(c *Classifier) {
		c.coupledThreshold = n
	}
}

// NewClassifier compiles the path rules from cfg into a ready classifier.
func NewClassifier(cfg config.RiskConfig, opts ...Option) (*Classifier, error) {
	c := &Classifier{coupledThreshold: defaultCoupledThreshold}

	var err error
	if c.tier3Paths, err = compilePatterns(cfg.Tier3Patterns); err != nil {
		return nil, fmt.Errorf("tier 3 patterns: %w", err)
	}
	if c.tier2Paths, err = compilePatterns(cfg.Tier2Patterns); err != nil {
		return nil, fmt.Errorf("tier 2 patterns: %w", err)
	}
	if c.tier1Paths, err = compilePatterns(cfg.Tier1Patterns); err != nil {
		return nil, fmt.Errorf("tier 1 patterns: %w", err)
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("%w: invalid pattern %q: %v", errors.ErrInvalidInput, p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// Classify runs the decision tree for one item. dependents is the number
// of other items that depend on this one; the classifier cannot derive it
// from the item alone, so the caller supplies the graph degree.
//
// The tree, evaluated top-down with first match winning:
//
//	tier 3  irreversible change or regulated/compliance path
//	tier 2  security, privacy, or persisted data
//	tier 1  user-visible surface or tight coupling to other items
//	tier 0  everything else
func (c *Classifier) Classify(item *work.WorkItem, dependents int) Assessment {
	desc := strings.ToLower(item.Description)
	files := item.AllFiles()

	if file, ok := matchPath(c.tier3Paths, files); ok {
		return Assessment{work.Tier3, fmt.Sprintf("%s matches a tier 3 path rule", file)}
	}
	if kw, ok := matchKeywords(desc, irreversibleKeywords); ok {
		return Assessment{work.Tier3, fmt.Sprintf("description signals an irreversible change (%q)", kw)}
	}
	if kw, ok := matchKeywords(desc, complianceKeywords); ok {
		return Assessment{work.Tier3, fmt.Sprintf("description signals a compliance-relevant path (%q)", kw)}
	}

	if file, ok := matchPath(c.tier2Paths, files); ok {
		return Assessment{work.Tier2, fmt.Sprintf("%s matches a tier 2 path rule", file)}
	}
	if kw, ok := matchKeywords(desc, securityKeywords); ok {
		return Assessment{work.Tier2, fmt.Sprintf("description signals a security surface (%q)", kw)}
	}
	if kw, ok := matchKeywords(desc, persistedDataKeywords); ok {
		return Assessment{work.Tier2, fmt.Sprintf("description signals persisted data (%q)", kw)}
	}

	if file, ok := matchPath(c.tier1Paths, files); ok {
		return Assessment{work.Tier1, fmt.Sprintf("%s matches a tier 1 path rule", file)}
	}
	if kw, ok := matchKeywords(desc, userVisibleKeywords); ok {
		return Assessment{work.Tier1, fmt.Sprintf("description signals user-visible behavior (%q)", kw)}
	}
	if kw, ok := matchKeywords(desc, surfaceKeywords); ok {
		return Assessment{work.Tier1, fmt.Sprintf("description signals a shared surface (%q)", kw)}
	}
	if degree := len(item.DependsOn) + dependents; degree >= c.coupledThreshold {
		return Assessment{work.Tier1, fmt.Sprintf("coupled to %d other items", degree)}
	}

	return Assessment{work.Tier0, "no elevated risk signals"}
}

// VetForWave reports whether the item satisfies the risk preconditions for
// entering a wave: a valid tier, and for tier 1 and above a complete
// four-question failure note.
func VetForWave(item *work.WorkItem) error {
	if item == nil {
		return fmt.Errorf("%w: nil work item", errors.ErrInvalidInput)
	}
	if !item.RiskTier.IsValid() {
		return fmt.Errorf("%w: %s has no risk tier", errors.ErrMissingRiskTier, item.ID)
	}
	if item.RiskTier.RequiresFailureNote() && !item.FailureNote.IsComplete() {
		return fmt.Errorf("%w: %s is %s and needs a complete failure note",
			errors.ErrMissingFailureNote, item.ID, item.RiskTier)
	}
	return nil
}

// matchPath returns the first file matched by any of the globs.
func matchPath(globs []glob.Glob, files []string) (string, bool) {
	for _, f := range files {
		for _, g := range globs {
			if g.Match(f) {
				return f, true
			}
		}
	}
	return "", false
}

// matchKeywords returns the first keyword found in the description.
// Phrases (keywords containing a space) match anywhere; single words must
// start a whole token, so "auth" fires on "authentication" but "ui" does
// not fire on "building".
func matchKeywords(desc string, keywords []string) (string, bool) {
	var tokens []string
	for _, kw := range keywords {
		if strings.ContainsRune(kw, ' ') {
			if strings.Contains(desc, kw) {
				return kw, true
			}
			continue
		}
		if tokens == nil {
			tokens = tokenize(desc)
		}
		for _, tok := range tokens {
			if strings.HasPrefix(tok, kw) {
				return kw, true
			}
		}
	}
	return "", false
}

// tokenize splits a lowercased description into alphanumeric words.
func tokenize(desc string) []string {
	return strings.FieldsFunc(desc, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= '0' && r <= '9':
			return false
		case r == '-' || r == '_':
			return false
		default:
			return true
		}
	})
}
