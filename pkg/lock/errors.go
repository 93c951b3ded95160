package lock

import "errors"

// Errors returned by Acquire, Release and Delta. Callers should test with
// errors.Is; Acquire wraps these with the path that produced them.
var (
	// ErrBadParam indicates an empty target path or owner id, or an
	// environment problem resolving the local hostname.
	ErrBadParam = errors.New("bad parameter")

	// ErrExclusiveOpen indicates the exclusive lockfile could not be
	// created within the retry budget (contention).
	ErrExclusiveOpen = errors.New("exclusive lockfile open failed")

	// ErrExclusiveWrite indicates the link name could not be written into
	// the exclusive lockfile within the retry budget.
	ErrExclusiveWrite = errors.New("exclusive lockfile write failed")

	// ErrStat indicates lstat failed after linking. This is fatal for the
	// acquire: without both stats, inode identity is inconclusive.
	ErrStat = errors.New("lockfile stat failed")

	// ErrInodeMismatch indicates the created lockfile and its hard link
	// never resolved to the same inode within the retry budget.
	ErrInodeMismatch = errors.New("lockfile inode mismatch")

	// ErrHeldByWriter indicates another owner holds a writer lock.
	ErrHeldByWriter = errors.New("lock held by writer")

	// ErrHeldByReader indicates another owner holds a reader lock and the
	// caller wants to write.
	ErrHeldByReader = errors.New("lock held by reader")

	// ErrOpen indicates a lock or anchor file could not be opened.
	ErrOpen = errors.New("lock file open failed")

	// ErrUpdate indicates the final lock file could not be rewritten.
	ErrUpdate = errors.New("lock file update failed")

	// ErrNoLock is returned by Delta when no final locks exist.
	ErrNoLock = errors.New("no lock present")
)
