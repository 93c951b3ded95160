package lock

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/xenlk/xenlk/internal/logger"
)

// classifier decides whether a sibling lock name conflicts with the caller.
type classifier func(name string, readonly bool) bool

// writerHeld matches any lock name whose terminal byte is 'w'. A writer
// excludes everyone.
func writerHeld(name string, _ bool) bool {
	return name != "" && name[len(name)-1] == 'w'
}

// readerHeld matches lock names whose terminal byte is 'r', but only when
// the caller itself wants to write. Readers tolerate other readers.
func readerHeld(name string, readonly bool) bool {
	return name != "" && name[len(name)-1] == 'r' && !readonly
}

// scanHolders walks the siblings of target looking for foreign locks.
//
// An entry is considered iff its basename starts with basename(target) and is
// none of basename(target), the exclusive lockfile or the caller's own final
// lock. The last exclusion is what keeps a reassert from conflicting with
// itself.
//
// With force set, every considered entry is unlinked (best effort) and stole
// reports whether any removal was attempted. Otherwise the classifier is
// applied and the scan short-circuits on the first conflict.
//
// A directory that cannot be read yields no conflict; the exclusive phase
// already serializes contenders, and a vanished directory will surface as an
// error when the final lock is materialized.
func scanHolders(target string, n names, force, readonly bool, held classifier) (conflict, stole bool) {
	dir, base := filepath.Split(target)
	if dir == "" {
		dir = "."
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("lock holder scan failed", "dir", dir, "error", err)
		return false, false
	}

	exclBase := filepath.Base(n.exclusive)
	finalBase := filepath.Base(n.flink)

	for _, entry := range entries {
		name := entry.Name()
		if name == base || name == exclBase || name == finalBase {
			continue
		}
		if !strings.HasPrefix(name, base) {
			continue
		}
		if force {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				logger.Warn("failed to unlink stolen lock", "name", name, "error", err)
			}
			stole = true
			continue
		}
		if held(name, readonly) {
			return true, stole
		}
	}
	return false, stole
}
