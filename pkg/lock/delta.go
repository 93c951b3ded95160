package lock

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xenlk/xenlk/internal/logger"
)

// Delta reports how long ago the most recently refreshed lock on target was
// written: the minimum (now - mtime) over all lock siblings, truncated to
// whole seconds. ErrNoLock is returned when no siblings exist.
//
// "now" is taken from the modification time of a short-lived anchor file
// created next to the target, so the comparison uses the fileserver's clock
// rather than the caller's. A lock refreshed between creating the anchor and
// scanning would otherwise produce a negative delta; those clamp to zero.
func (l *Locker) Delta(target string) (time.Duration, error) {
	if target == "" {
		return 0, ErrBadParam
	}

	anchor := fmt.Sprintf("%s.xen%08d.%06x.tmp", target, os.Getpid(), rand.Intn(1<<24))
	f, err := os.OpenFile(anchor, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrOpen, anchor)
	}
	closeQuiet(f)
	fi, err := os.Lstat(anchor)
	if err != nil {
		removeQuiet(anchor)
		return 0, fmt.Errorf("%w: %s", ErrStat, anchor)
	}
	now := fi.ModTime()
	removeQuiet(anchor)

	dir, base := filepath.Split(target)
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Debug("lock delta scan failed", "dir", dir, "error", err)
		return 0, fmt.Errorf("%w: %s", ErrNoLock, target)
	}

	found := false
	lowest := time.Duration(0)
	for _, entry := range entries {
		name := entry.Name()
		if name == base || !strings.HasPrefix(name, base) {
			continue
		}
		fi, err := os.Lstat(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		diff := now.Sub(fi.ModTime()).Truncate(time.Second)
		if diff < 0 {
			diff = 0
		}
		if !found || diff < lowest {
			found = true
			lowest = diff
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrNoLock, target)
	}
	return lowest, nil
}
