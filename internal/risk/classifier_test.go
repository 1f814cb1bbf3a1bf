package risk

import (
	"strings"
	"testing"

	"github.com/tidelab/swell/internal/config"
	"github.com/tidelab/swell/internal/errors"
	"github.com/tidelab/swell/internal/work"
)

func newTestClassifier(t *testing.T, opts ...Option) *Classifier {
	t.Helper()
	c, err := NewClassifier(config.Default().Risk, opts...)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return c
}

func TestClassifier_Classify(t *testing.T) {
	tests := []struct {
		name       string
		desc       string
		created    []string
		modified   []string
		dependents int
		want       work.RiskTier
	}{
		{
			name:    "sql file is tier 3",
			desc:    "add users table",
			created: []string{"db/schema.sql"},
			want:    work.Tier3,
		},
		{
			name:     "migrations path is tier 3",
			desc:     "initial schema",
			modified: []string{"migrations/0001_init.go"},
			want:     work.Tier3,
		},
		{
			name: "irreversible phrase is tier 3",
			desc: "run the data transformation one way",
			want: work.Tier3,
		},
		{
			name: "delete keyword is tier 3",
			desc: "delete stale rows from the archive",
			want: work.Tier3,
		},
		{
			name: "compliance keyword is tier 3",
			desc: "prepare the gdpr report",
			want: work.Tier3,
		},
		{
			name:     "auth path is tier 2",
			desc:     "refresh middleware",
			modified: []string{"internal/auth/middleware.go"},
			want:     work.Tier2,
		},
		{
			name: "security keyword matches inflected words",
			desc: "add authentication middleware",
			want: work.Tier2,
		},
		{
			name: "persisted data keyword is tier 2",
			desc: "store profile rows in the database",
			want: work.Tier2,
		},
		{
			name:     "api path is tier 1",
			desc:     "reroute requests",
			modified: []string{"api/routes.go"},
			want:     work.Tier1,
		},
		{
			name: "user-visible keyword is tier 1",
			desc: "tweak the frontend layout",
			want: work.Tier1,
		},
		{
			name: "shared surface keyword is tier 1",
			desc: "extend the public api surface",
			want: work.Tier1,
		},
		{
			name:       "heavy coupling is tier 1",
			desc:       "wire the pieces together",
			dependents: 3,
			want:       work.Tier1,
		},
		{
			name:       "light coupling stays tier 0",
			desc:       "wire the pieces together",
			dependents: 2,
			want:       work.Tier0,
		},
		{
			name: "no signals is tier 0",
			desc: "tidy whitespace in comments",
			want: work.Tier0,
		},
		{
			name: "keywords only fire on token starts",
			desc: "building the new parser",
			want: work.Tier0,
		},
	}

	c := newTestClassifier(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := work.NewItem("item-1", tt.desc)
			item.FilesCreated = tt.created
			item.FilesModified = tt.modified

			a := c.Classify(item, tt.dependents)
			if a.Tier != tt.want {
				t.Errorf("Classify(%q) = %s (%s), want %s", tt.desc, a.Tier, a.Rationale, tt.want)
			}
			if a.Rationale == "" {
				t.Error("rationale should never be empty")
			}
		})
	}
}

func TestClassifier_FirstMatchWins(t *testing.T) {
	c := newTestClassifier(t)

	// The description signals an irreversible change and the file sits on a
	// tier 2 path; the tree is evaluated top-down so tier 3 must win.
	item := work.NewItem("item-1", "update auth migration")
	item.FilesModified = []string{"internal/auth/login.go"}

	a := c.Classify(item, 0)
	if a.Tier != work.Tier3 {
		t.Errorf("Classify = %s (%s), want T3", a.Tier, a.Rationale)
	}
	if !strings.Contains(a.Rationale, "irreversible") {
		t.Errorf("rationale = %q, want the irreversible signal", a.Rationale)
	}
}

func TestClassifier_WithCoupledThreshold(t *testing.T) {
	c := newTestClassifier(t, WithCoupledThreshold(1))

	item := work.NewItem("item-1", "wire the pieces together")
	if a := c.Classify(item, 1); a.Tier != work.Tier1 {
		t.Errorf("Classify with lowered threshold = %s, want T1", a.Tier)
	}
}

func TestNewClassifier_InvalidPattern(t *testing.T) {
	cfg := config.Default().Risk
	cfg.Tier3Patterns = []string{"["}

	if _, err := NewClassifier(cfg); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("NewClassifier with bad pattern = %v, want ErrInvalidInput", err)
	}
}

func TestVetForWave(t *testing.T) {
	completeNote := &work.FailureNote{
		WhatCouldFail:     "the handler rejects valid sessions",
		HowDetected:       "gate checks on the login flow",
		FastestRollback:   "revert the commit",
		WeakestAssumption: "token format is stable",
	}

	t.Run("nil item", func(t *testing.T) {
		if err := VetForWave(nil); !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("VetForWave(nil) = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("unclassified item is rejected", func(t *testing.T) {
		item := work.NewItem("item-1", "task")
		if err := VetForWave(item); !errors.Is(err, errors.ErrMissingRiskTier) {
			t.Errorf("VetForWave = %v, want ErrMissingRiskTier", err)
		}
	})

	t.Run("tier 0 needs no note", func(t *testing.T) {
		item := work.NewItem("item-1", "task")
		item.RiskTier = work.Tier0
		if err := VetForWave(item); err != nil {
			t.Errorf("VetForWave = %v, want nil", err)
		}
	})

	t.Run("tier 1 without note is rejected", func(t *testing.T) {
		item := work.NewItem("item-1", "task")
		item.RiskTier = work.Tier1
		if err := VetForWave(item); !errors.Is(err, errors.ErrMissingFailureNote) {
			t.Errorf("VetForWave = %v, want ErrMissingFailureNote", err)
		}
	})

	t.Run("tier 1 with complete note passes", func(t *testing.T) {
		item := work.NewItem("item-1", "task")
		item.RiskTier = work.Tier1
		item.FailureNote = completeNote
		if err := VetForWave(item); err != nil {
			t.Errorf("VetForWave = %v, want nil", err)
		}
	})

	t.Run("tier 3 with complete note passes", func(t *testing.T) {
		item := work.NewItem("item-1", "task")
		item.RiskTier = work.Tier3
		item.FailureNote = completeNote
		if err := VetForWave(item); err != nil {
			t.Errorf("VetForWave = %v, want nil", err)
		}
	})
}
