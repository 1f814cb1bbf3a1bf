// Package filelock guards file ownership at two levels.
//
// The [Registry] is an in-process ownership map for wave execution. The
// scheduler guarantees that items sharing a wave declare disjoint file
// sets; the coordinator claims each item's files before its worker starts
// and releases them when the wave ends. A rejected claim therefore means
// the plan is broken, and the drift watcher uses [Registry.Owner] to
// attribute writes it observes to the item that owns the file, or to flag
// them as outside any ownership set.
//
// [FileLock] is a cross-process advisory lock built on flock(2). Run
// artifacts and ledger snapshots are written under it so a status command
// in another process never reads a half-written run directory.
//
// # Usage
//
//	reg := filelock.NewRegistry()
//	if err := reg.ClaimAll("item-1", item.AllFiles()); err != nil {
//	    return err
//	}
//	defer reg.ReleaseAll("item-1")
//
//	owner, ok := reg.Owner("internal/api/handler.go")
//
// # Thread Safety
//
// All [Registry] methods are safe for concurrent use. A [FileLock] value
// is not; share the lock file path, not the value.
package filelock
