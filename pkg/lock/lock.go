// Package lock implements advisory "dot locking" of a target path shared by
// independent processes, possibly on different hosts, through a common
// POSIX-compatible directory (NFS included).
//
// All protocol state lives as sibling files of the target; nothing in memory
// outlives a call, so every contender observes the same authoritative state.
// Mutual exclusion rests on the conjunction of three primitives that are each
// atomic on well-behaved network filesystems: exclusive create, hard linking
// and inode identity. Neither exclusive create nor link alone is reliable on
// NFS; create-then-link-then-compare is.
//
// The discipline is single writer or many readers. An owner that already
// holds a lock may acquire it again to refresh it (reassert), and a caller
// may forcibly steal abandoned locks, after which a quiet period gives the
// previous holder time to notice.
package lock

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand"
	"os"
	"time"

	"github.com/xenlk/xenlk/internal/logger"
	"github.com/xenlk/xenlk/pkg/metrics"
)

// Defaults for Locker tunables.
const (
	// DefaultRetries bounds attempts across one whole acquire.
	DefaultRetries = 16

	// DefaultMaxBackoff caps the randomized sleep between attempts.
	DefaultMaxBackoff = 512 * time.Millisecond

	// DefaultLeaseTime is the quiet period observed after a forced steal,
	// giving the previous holder time to notice its lock is gone.
	DefaultLeaseTime = 30 * time.Second
)

// Locker performs advisory lock operations with a fixed set of tunables.
// The zero value is not usable; call New. A Locker holds no lock state and
// is safe for concurrent use.
type Locker struct {
	// Retries bounds attempts across one acquire.
	Retries int

	// MaxBackoff caps the randomized sleep between attempts.
	MaxBackoff time.Duration

	// LeaseTime is the post-steal quiet period.
	LeaseTime time.Duration

	// Metrics optionally records acquire/steal/release outcomes.
	// Nil disables collection with zero overhead.
	Metrics metrics.LockMetrics
}

// New returns a Locker with default tunables.
func New() *Locker {
	return &Locker{
		Retries:    DefaultRetries,
		MaxBackoff: DefaultMaxBackoff,
		LeaseTime:  DefaultLeaseTime,
	}
}

var std = New()

// Acquire takes or refreshes an advisory lock on target using the default
// tunables. See Locker.Acquire.
func Acquire(target, owner string, force, readonly bool) error {
	return std.Acquire(target, owner, force, readonly)
}

// Release drops the caller's final lock using the default tunables.
func Release(target, owner string, readonly bool) error {
	return std.Release(target, owner, readonly)
}

// Delta reports the age of the most recently refreshed lock on target.
func Delta(target string) (time.Duration, error) {
	return std.Delta(target)
}

// Acquire takes an advisory lock on target for owner. With readonly the lock
// is shared with other readers; otherwise it is exclusive. An owner that
// already holds the lock gets it again with a refreshed modification time.
//
// With force, foreign lock files are removed instead of reported, and a
// LeaseTime quiet period is observed before returning when anything was
// actually stolen.
//
// The returned error is nil on success or wraps one of the sentinel errors
// of this package. Contention surfaces as ErrHeldByWriter, ErrHeldByReader
// or, when the exclusive phase never succeeded, the last failure of that
// phase: ErrExclusiveOpen or ErrInodeMismatch.
func (l *Locker) Acquire(target, owner string, force, readonly bool) error {
	n, err := lockNames(target, owner, readonly)
	if err != nil {
		return err
	}

	start := time.Now()
	err = l.acquire(target, n, force, readonly)
	if l.Metrics != nil {
		l.Metrics.RecordAcquire(modeChar(readonly), outcomeLabel(err), time.Since(start))
	}
	return err
}

func (l *Locker) acquire(target string, n names, force, readonly bool) (status error) {
	var (
		attempts               int
		stealx, stealw, stealr bool
	)

	// The exclusive lockfile never survives an acquire, success or failure.
	defer func() {
		if err := os.Remove(n.exclusive); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("error removing exclusive lockfile", "path", n.exclusive, "error", err)
		}
	}()

	for {
		if attempts > l.Retries {
			// Retries exhausted: report the last transient failure.
			return status
		}
		attempts++

		fd, err := l.openExclusive(n, force, &stealx)
		if err != nil {
			status = err
			continue
		}

		// Record the link name inside the exclusive file so a later
		// attempt by the same owner can recognize it.
		if nw, werr := fd.Write([]byte(n.xlink)); werr != nil || nw != len(n.xlink) {
			closeQuiet(fd)
			l.backoff()
			status = fmt.Errorf("%w: %s", ErrExclusiveWrite, n.exclusive)
			removeQuiet(n.exclusive)
			continue
		}
		closeQuiet(fd)

		// Prove ownership: a second name for the same inode can only
		// exist if we are the one who created the file.
		attempts++
		if err := os.Link(n.exclusive, n.xlink); err != nil && !errors.Is(err, fs.ErrExist) {
			logger.Debug("link failed", "lockfile", n.exclusive, "link", n.xlink, "error", err)
		}
		fi1, err1 := os.Lstat(n.exclusive)
		fi2, err2 := os.Lstat(n.xlink)
		if err1 != nil || err2 != nil {
			// Inode identity is inconclusive; mutual exclusion
			// cannot be reasoned about. Fatal.
			removeQuiet(n.exclusive)
			removeQuiet(n.xlink)
			l.backoff()
			return fmt.Errorf("%w: %s", ErrStat, n.exclusive)
		}
		if !os.SameFile(fi1, fi2) {
			// A contender linked in between; back off and restart.
			removeQuiet(n.exclusive)
			removeQuiet(n.xlink)
			l.backoff()
			status = fmt.Errorf("%w: %s", ErrInodeMismatch, n.xlink)
			continue
		}

		// Exclusive phase won. The link has served its purpose; the
		// exclusive file alone now holds the critical section.
		removeQuiet(n.xlink)

		// Fast path: we already hold a final lock and are reasserting.
		// Refreshing it cannot introduce conflicts beyond what was
		// already tolerated, so the scan is skipped.
		if _, err := os.Lstat(n.flink); err != nil {
			var conflict bool
			conflict, stealw = scanHolders(target, n, force, readonly, writerHeld)
			if conflict {
				return fmt.Errorf("%w: %s", ErrHeldByWriter, target)
			}
			conflict, stealr = scanHolders(target, n, force, readonly, readerHeld)
			if conflict {
				return fmt.Errorf("%w: %s", ErrHeldByReader, target)
			}
		}

		// Materialize the final lock. No O_EXCL: a reassert rewrites
		// the existing file, which refreshes its modification time.
		ffd, err := os.OpenFile(n.flink, os.O_WRONLY|os.O_CREATE, 0o644)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrOpen, n.flink)
		}
		if nw, werr := ffd.Write([]byte(n.flink)); werr != nil || nw != len(n.flink) {
			closeQuiet(ffd)
			l.backoff()
			status = fmt.Errorf("%w: %s", ErrUpdate, n.flink)
			continue
		}
		closeQuiet(ffd)

		if force && (stealx || stealw || stealr) {
			l.recordSteals(stealx, stealw, stealr)
			logger.Info("lock stolen, observing quiet period",
				"target", target, "lease", l.LeaseTime)
			time.Sleep(l.LeaseTime)
		}
		return nil
	}
}

// openExclusive opens the exclusive lockfile for this attempt. It returns a
// file positioned at offset zero, either freshly created or, on the reassert
// path, the already existing file recognized as ours. Failures come back as
// ErrExclusiveOpen after the backoff sleep.
func (l *Locker) openExclusive(n names, force bool, stealx *bool) (*os.File, error) {
	fd, err := os.OpenFile(n.exclusive, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err == nil {
		return fd, nil
	}
	logger.Debug("exclusive lockfile creation failed",
		"path", n.exclusive, "force", force, "error", err)

	// Already owned by us? The file content is the link name we would
	// have written; compare everything but the terminal mode byte so a
	// reader/writer upgrade is still recognized as a reassert.
	if rw, rwErr := os.OpenFile(n.exclusive, os.O_RDWR, 0o644); rwErr == nil {
		buf := make([]byte, len(n.xlink))
		if nr, _ := io.ReadFull(rw, buf); nr == len(buf) &&
			bytes.Equal(buf[:len(buf)-1], []byte(n.xlink)[:len(n.xlink)-1]) {
			if _, seekErr := rw.Seek(0, io.SeekStart); seekErr == nil {
				logger.Debug("exclusive lockfile owned by us, reasserting", "path", n.exclusive)
				return rw, nil
			}
		}
		closeQuiet(rw)
	}

	if force {
		if rmErr := os.Remove(n.exclusive); rmErr != nil {
			logger.Warn("forced removal of exclusive lockfile failed",
				"path", n.exclusive, "error", rmErr)
		}
		*stealx = true
	}
	l.backoff()
	return nil, fmt.Errorf("%w: %s", ErrExclusiveOpen, n.exclusive)
}

// Release drops the caller's final lock on target. Releasing a lock that no
// longer exists (already released, or stolen) succeeds: the desired state is
// already in place.
func (l *Locker) Release(target, owner string, readonly bool) error {
	n, err := lockNames(target, owner, readonly)
	if err != nil {
		return err
	}
	if err := os.Remove(n.flink); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Debug("error removing final lock file", "path", n.flink, "error", err)
	}
	if l.Metrics != nil {
		l.Metrics.RecordRelease(modeChar(readonly))
	}
	return nil
}

// backoff sleeps a uniformly random duration up to MaxBackoff, breaking
// lockstep between contenders that failed the same race.
func (l *Locker) backoff() {
	limit := l.MaxBackoff
	if limit <= 0 {
		return
	}
	time.Sleep(time.Duration(rand.Int63n(int64(limit))) + 1)
}

func (l *Locker) recordSteals(stealx, stealw, stealr bool) {
	if l.Metrics == nil {
		return
	}
	if stealx {
		l.Metrics.RecordSteal("exclusive")
	}
	if stealw {
		l.Metrics.RecordSteal("writer")
	}
	if stealr {
		l.Metrics.RecordSteal("reader")
	}
}

// outcomeLabel maps an acquire result to a bounded metric label.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrHeldByWriter):
		return "held_by_writer"
	case errors.Is(err, ErrHeldByReader):
		return "held_by_reader"
	case errors.Is(err, ErrExclusiveOpen), errors.Is(err, ErrInodeMismatch):
		return "contended"
	default:
		return "error"
	}
}

func closeQuiet(f *os.File) {
	if err := f.Close(); err != nil {
		logger.Debug("close failed", "name", f.Name(), "error", err)
	}
}

func removeQuiet(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Debug("error removing lock file", "path", path, "error", err)
	}
}
