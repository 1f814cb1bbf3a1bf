package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidelab/swell/internal/conflict"
	"github.com/tidelab/swell/internal/errors"
	"github.com/tidelab/swell/internal/filelock"
	"github.com/tidelab/swell/internal/logging"
	"github.com/tidelab/swell/internal/work"
)

const (
	itemsDirName     = "items"
	coordinationFile = "coordination.md"
	artifactLockName = "artifacts.lock"
)

// Writer persists run artifacts under a run directory: one JSON plan per
// item and a coordination document describing waves and conflict
// resolutions. Writes go through a temp file and a cross-process lock, so
// a concurrent status reader never sees a torn artifact.
type Writer struct {
	dir string
	log *logging.Logger
}

// NewWriter returns a Writer rooted at the run directory. A nil logger
// disables logging.
func NewWriter(dir string, log *logging.Logger) *Writer {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Writer{dir: dir, log: log}
}

// Dir returns the run directory the writer is rooted at.
func (w *Writer) Dir() string { return w.dir }

// WriteItemPlan writes one item's plan artifact to items/<id>.json. The
// artifact carries everything a collaborator needs to pick the item up:
// files, dependencies, tier and failure note.
func (w *Writer) WriteItemPlan(item *work.WorkItem) error {
	if item == nil || strings.TrimSpace(item.ID) == "" {
		return fmt.Errorf("%w: item plan needs an id", errors.ErrInvalidInput)
	}
	itemsDir := filepath.Join(w.dir, itemsDirName)
	if err := os.MkdirAll(itemsDir, 0755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	fl := filelock.NewFileLock(filepath.Join(w.dir, artifactLockName))
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquire artifact lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return fmt.Errorf("encode item plan: %w", err)
	}
	path := filepath.Join(itemsDir, item.ID+".json")
	if err := atomicWriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write item plan: %w", err)
	}
	w.log.Debug("item plan written", "item_id", item.ID, "path", path)
	return nil
}

// WriteCoordination writes the coordination document: the wave diagram and
// the conflict-resolution table. Call it again after a wave settles to keep
// the artifact current.
func (w *Writer) WriteCoordination(waves []*work.Wave, res *conflict.Result) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	fl := filelock.NewFileLock(filepath.Join(w.dir, artifactLockName))
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquire artifact lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	content := renderCoordination(waves, res, time.Now())
	path := filepath.Join(w.dir, coordinationFile)
	if err := atomicWriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write coordination plan: %w", err)
	}
	w.log.Debug("coordination plan written", "path", path, "waves", len(waves))
	return nil
}

func renderCoordination(waves []*work.Wave, res *conflict.Result, now time.Time) string {
	var b strings.Builder
	b.WriteString("# Coordination Plan\n\n")
	fmt.Fprintf(&b, "Generated %s.\n\n", now.UTC().Format(time.RFC3339))

	b.WriteString("## Waves\n\n")
	if len(waves) == 0 {
		b.WriteString("No waves scheduled.\n")
	} else {
		b.WriteString("```\n")
		for _, wv := range waves {
			if wv == nil {
				continue
			}
			status := wv.Status
			if status == "" {
				status = work.WavePending
			}
			fmt.Fprintf(&b, "wave %d [%s]", wv.Index, status)
			if wv.Verdict != "" {
				fmt.Fprintf(&b, " verdict=%s", wv.Verdict)
			}
			fmt.Fprintf(&b, ": %s\n", strings.Join(wv.ItemIDs, ", "))
		}
		b.WriteString("```\n")
	}

	b.WriteString("\n## Conflict Resolutions\n\n")
	if res == nil || len(res.Records) == 0 {
		b.WriteString("No overlapping files detected.\n")
		return b.String()
	}
	b.WriteString("| File | Items | Resolution | Order | Reason |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, rec := range res.Records {
		order := "-"
		if rec.First != "" && rec.Second != "" {
			order = rec.First + " before " + rec.Second
		}
		fmt.Fprintf(&b, "| %s | %s, %s | %s | %s | %s |\n",
			rec.File, rec.ItemA, rec.ItemB, rec.Resolution, order, rec.Reason)
	}
	if frozen := res.FrozenItems(); len(frozen) > 0 {
		fmt.Fprintf(&b, "\nFrozen pending escalation: %s.\n", strings.Join(frozen, ", "))
	}
	return b.String()
}

// atomicWriteFile writes data to path through a temp file in the same
// directory, so readers never observe a partial artifact.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	ok := false
	defer func() {
		if !ok {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	ok = true
	return nil
}
