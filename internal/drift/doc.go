// Package drift audits workspace writes against declared file ownership
// while a wave is running.
//
// Scheduling guarantees no two items in a wave share a file, and the
// dispatcher claims every declared path in a [filelock.Registry] before
// workers start. Nothing enforces those claims at the filesystem level;
// workers are trusted. The watcher closes the gap by observing the
// workspace with fsnotify and recording a [Finding] for every write that
// lands outside all claims. Findings are warnings, not failures: the
// coordinator folds them into the wave's verification issues.
//
// # Usage
//
//	w, err := drift.NewWatcher(workspace, registry)
//	if err != nil {
//		return err
//	}
//	if err := w.Start(); err != nil {
//		return err
//	}
//	defer w.Stop()
//
//	// after the wave settles
//	for _, f := range w.Findings() {
//		issues = append(issues, f.String())
//	}
//	w.Reset()
//
// One watcher serves a whole run: Reset clears findings between waves
// while the watch set stays in place.
package drift
