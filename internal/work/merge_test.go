package work

import (
	"reflect"
	"testing"
)

func TestMerge(t *testing.T) {
	a := NewItem("item-a", "create the schema")
	a.Priority = PriorityNice
	a.RiskTier = Tier3
	a.FilesCreated = []string{"schema.sql"}
	a.DependsOn = []string{"item-x"}

	b := NewItem("item-b", "seed the schema")
	b.Priority = PriorityMust
	b.RiskTier = Tier1
	b.FilesCreated = []string{"schema.sql"}
	b.FilesModified = []string{"seed.sql"}
	b.DependsOn = []string{"item-a", "item-y"}
	b.IterationIntroduced = 2

	m := Merge("item-m", a, b)

	if m.ID != "item-m" {
		t.Errorf("ID = %q, want item-m", m.ID)
	}
	if m.Description != "create the schema; seed the schema" {
		t.Errorf("Description = %q", m.Description)
	}
	if m.Status != StatusPending {
		t.Errorf("Status = %s, want pending", m.Status)
	}
	if m.Priority != PriorityMust {
		t.Errorf("Priority = %s, want the highest of the sources", m.Priority)
	}
	if m.RiskTier != Tier3 {
		t.Errorf("RiskTier = %s, want the highest of the sources", m.RiskTier)
	}
	if m.IterationIntroduced != 2 {
		t.Errorf("IterationIntroduced = %d, want 2", m.IterationIntroduced)
	}

	if !reflect.DeepEqual(m.FilesCreated, []string{"schema.sql"}) {
		t.Errorf("FilesCreated = %v", m.FilesCreated)
	}
	if !reflect.DeepEqual(m.FilesModified, []string{"seed.sql"}) {
		t.Errorf("FilesModified = %v", m.FilesModified)
	}

	// Dependencies between the merged items vanish; external ones survive.
	if !reflect.DeepEqual(m.DependsOn, []string{"item-x", "item-y"}) {
		t.Errorf("DependsOn = %v, want external deps only", m.DependsOn)
	}
}

func TestMerge_CreationAbsorbsModification(t *testing.T) {
	a := NewItem("item-a", "create config")
	a.FilesCreated = []string{"config.go"}
	b := NewItem("item-b", "adjust config")
	b.FilesModified = []string{"config.go"}

	m := Merge("item-m", a, b)

	if !reflect.DeepEqual(m.FilesCreated, []string{"config.go"}) {
		t.Errorf("FilesCreated = %v", m.FilesCreated)
	}
	if len(m.FilesModified) != 0 {
		t.Errorf("FilesModified = %v, want empty", m.FilesModified)
	}
}
