package plan

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tidelab/swell/internal/config"
	"github.com/tidelab/swell/internal/conflict"
	"github.com/tidelab/swell/internal/errors"
	"github.com/tidelab/swell/internal/work"
)

func TestWriter_WriteItemPlan(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, nil)

	item := work.NewItem("auth-tokens", "rotate signing keys for session tokens")
	item.Priority = work.PriorityMust
	item.RiskTier = work.Tier2
	item.RiskRationale = "touches live credential material"
	item.FilesModified = []string{"internal/auth/keys.go"}
	item.DependsOn = []string{"auth-config"}
	item.Wave = 2
	item.FailureNote = &work.FailureNote{
		WhatCouldFail:     "sessions signed with the old key stop validating",
		HowDetected:       "auth integration suite",
		FastestRollback:   "restore the previous key pair",
		WeakestAssumption: "no session outlives the rotation window",
	}

	if err := w.WriteItemPlan(item); err != nil {
		t.Fatalf("WriteItemPlan() error = %v", err)
	}

	path := filepath.Join(dir, "items", "auth-tokens.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var got work.WorkItem
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if got.ID != "auth-tokens" {
		t.Errorf("ID = %q, want %q", got.ID, "auth-tokens")
	}
	if got.Priority != work.PriorityMust {
		t.Errorf("Priority = %v, want %v", got.Priority, work.PriorityMust)
	}
	if got.RiskTier != work.Tier2 {
		t.Errorf("RiskTier = %v, want %v", got.RiskTier, work.Tier2)
	}
	if got.Wave != 2 {
		t.Errorf("Wave = %d, want 2", got.Wave)
	}
	if len(got.DependsOn) != 1 || got.DependsOn[0] != "auth-config" {
		t.Errorf("DependsOn = %v", got.DependsOn)
	}
	if got.FailureNote == nil || got.FailureNote.FastestRollback != "restore the previous key pair" {
		t.Errorf("FailureNote = %+v", got.FailureNote)
	}
}

func TestWriter_WriteItemPlan_Overwrites(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, nil)

	item := work.NewItem("auth-config", "introduce a rotation config section")
	if err := w.WriteItemPlan(item); err != nil {
		t.Fatalf("WriteItemPlan() error = %v", err)
	}
	item.Status = work.StatusCompleted
	if err := w.WriteItemPlan(item); err != nil {
		t.Fatalf("WriteItemPlan() rewrite error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "items", "auth-config.json"))
	if err != nil {
		t.Fatal(err)
	}
	var got work.WorkItem
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != work.StatusCompleted {
		t.Errorf("Status = %v, want %v", got.Status, work.StatusCompleted)
	}

	// No temp files may survive a write.
	entries, err := os.ReadDir(filepath.Join(dir, "items"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestWriter_WriteItemPlan_RequiresID(t *testing.T) {
	w := NewWriter(t.TempDir(), nil)

	if err := w.WriteItemPlan(nil); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("WriteItemPlan(nil) error = %v, want ErrInvalidInput", err)
	}
	if err := w.WriteItemPlan(&work.WorkItem{}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("WriteItemPlan(no id) error = %v, want ErrInvalidInput", err)
	}
}

func TestWriter_WriteCoordination(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, nil)

	a := work.NewItem("auth-config", "introduce a rotation config section")
	a.FilesModified = []string{"internal/auth/keys.go"}
	b := work.NewItem("auth-tokens", "rotate signing keys for session tokens")
	b.FilesModified = []string{"internal/auth/keys.go"}
	c := work.NewItem("cli-init", "wire the init subcommand")
	c.FilesCreated = []string{"internal/cmd/init.go"}
	d := work.NewItem("cli-setup", "wire the setup subcommand")
	d.FilesCreated = []string{"internal/cmd/init.go"}

	res := conflict.NewResolver(config.Default().Conflict).Resolve([]*work.WorkItem{a, b, c, d})
	if !res.HasEscalations() {
		t.Fatal("expected the create/create overlap to escalate")
	}

	waves := []*work.Wave{
		{Index: 1, ItemIDs: []string{"auth-config"}, Status: work.WavePassed, Verdict: work.VerdictPass},
		{Index: 2, ItemIDs: []string{"auth-tokens", "cli-init"}},
	}
	if err := w.WriteCoordination(waves, res); err != nil {
		t.Fatalf("WriteCoordination() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "coordination.md"))
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	for _, want := range []string{
		"# Coordination Plan",
		"wave 1 [passed] verdict=pass: auth-config",
		"wave 2 [pending]: auth-tokens, cli-init",
		"internal/auth/keys.go",
		string(conflict.ResolutionSequential),
		string(conflict.ResolutionEscalate),
		"Frozen pending escalation: cli-init, cli-setup.",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("coordination.md missing %q\n%s", want, content)
		}
	}
}

func TestWriter_WriteCoordination_EmptyPlan(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, nil)

	if err := w.WriteCoordination(nil, nil); err != nil {
		t.Fatalf("WriteCoordination() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "coordination.md"))
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "No waves scheduled.") {
		t.Errorf("missing empty-wave notice:\n%s", content)
	}
	if !strings.Contains(content, "No overlapping files detected.") {
		t.Errorf("missing no-conflict notice:\n%s", content)
	}
}

func TestRenderCoordination_Deterministic(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	waves := []*work.Wave{{Index: 1, ItemIDs: []string{"solo"}}}

	got := renderCoordination(waves, nil, now)
	if !strings.Contains(got, "Generated 2026-03-01T10:00:00Z.") {
		t.Errorf("render missing timestamp:\n%s", got)
	}
	if got != renderCoordination(waves, nil, now) {
		t.Error("render is not deterministic for identical input")
	}
}
