package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestLocker returns a Locker with timing shrunk so contended and stolen
// paths finish in milliseconds instead of seconds.
func newTestLocker() *Locker {
	return &Locker{
		Retries:    DefaultRetries,
		MaxBackoff: 2 * time.Millisecond,
		LeaseTime:  50 * time.Millisecond,
	}
}

// lockSiblings lists every lock sibling of target.
func lockSiblings(t *testing.T, target string) []string {
	t.Helper()
	matches, err := filepath.Glob(target + lockSuffix + "*")
	require.NoError(t, err)
	return matches
}

func TestAcquireSingleWriter(t *testing.T) {
	l := newTestLocker()
	target := filepath.Join(t.TempDir(), "f")

	require.NoError(t, l.Acquire(target, "001", false, false))

	n, err := lockNames(target, "001", false)
	require.NoError(t, err)

	siblings := lockSiblings(t, target)
	require.Equal(t, []string{n.flink}, siblings, "exactly the final writer lock must exist")
	assert.True(t, strings.HasSuffix(n.flink, ".fw"))

	content, err := os.ReadFile(n.flink)
	require.NoError(t, err)
	assert.Equal(t, n.flink, string(content), "final lock content is its own name")

	require.NoError(t, l.Release(target, "001", false))
	assert.Empty(t, lockSiblings(t, target), "release must leave no lock siblings")
}

func TestAcquireTwoReaders(t *testing.T) {
	l := newTestLocker()
	target := filepath.Join(t.TempDir(), "f")

	require.NoError(t, l.Acquire(target, "001", false, true))
	require.NoError(t, l.Acquire(target, "002", false, true))

	siblings := lockSiblings(t, target)
	require.Len(t, siblings, 2)
	for _, s := range siblings {
		assert.True(t, strings.HasSuffix(s, ".fr"), "reader locks only: %s", s)
	}
}

func TestWriterBlocksReader(t *testing.T) {
	l := newTestLocker()
	target := filepath.Join(t.TempDir(), "f")

	require.NoError(t, l.Acquire(target, "001", false, false))

	err := l.Acquire(target, "002", false, true)
	require.ErrorIs(t, err, ErrHeldByWriter)
}

func TestWriterBlocksWriter(t *testing.T) {
	l := newTestLocker()
	target := filepath.Join(t.TempDir(), "f")

	require.NoError(t, l.Acquire(target, "001", false, false))

	err := l.Acquire(target, "002", false, false)
	require.ErrorIs(t, err, ErrHeldByWriter)
}

func TestReaderBlocksWriter(t *testing.T) {
	l := newTestLocker()
	target := filepath.Join(t.TempDir(), "f")

	require.NoError(t, l.Acquire(target, "001", false, true))
	require.NoError(t, l.Acquire(target, "002", false, true))

	err := l.Acquire(target, "003", false, false)
	require.ErrorIs(t, err, ErrHeldByReader)
}

func TestReassertRefreshesFinalLock(t *testing.T) {
	l := newTestLocker()
	target := filepath.Join(t.TempDir(), "f")

	require.NoError(t, l.Acquire(target, "001", false, false))

	n, err := lockNames(target, "001", false)
	require.NoError(t, err)

	// Age the lock so the refresh is observable regardless of the
	// filesystem's timestamp granularity.
	old := time.Now().Add(-10 * time.Second)
	require.NoError(t, os.Chtimes(n.flink, old, old))
	before, err := os.Lstat(n.flink)
	require.NoError(t, err)

	require.NoError(t, l.Acquire(target, "001", false, false))

	after, err := os.Lstat(n.flink)
	require.NoError(t, err)
	assert.True(t, after.ModTime().After(before.ModTime()), "reassert must refresh mtime")
	assert.Len(t, lockSiblings(t, target), 1, "reassert must not create extra files")
}

func TestOwnReaderBlocksUpgrade(t *testing.T) {
	l := newTestLocker()
	target := filepath.Join(t.TempDir(), "f")

	require.NoError(t, l.Acquire(target, "001", false, true))

	// A held reader lock is not excluded from the writer's conflict
	// scan, so an upgrade by the same owner reports held-by-reader.
	err := l.Acquire(target, "001", false, false)
	require.ErrorIs(t, err, ErrHeldByReader)
}

func TestReleaseIdempotent(t *testing.T) {
	l := newTestLocker()
	target := filepath.Join(t.TempDir(), "f")

	require.NoError(t, l.Acquire(target, "001", false, false))
	require.NoError(t, l.Release(target, "001", false))
	require.NoError(t, l.Release(target, "001", false))
	require.NoError(t, l.Release(target, "never-acquired", true))
}

func TestAcquireBadParams(t *testing.T) {
	l := newTestLocker()
	require.ErrorIs(t, l.Acquire("", "001", false, false), ErrBadParam)
	require.ErrorIs(t, l.Acquire("/tmp/f", "", false, false), ErrBadParam)
	require.ErrorIs(t, l.Release("", "001", false), ErrBadParam)
	_, err := l.Delta("")
	require.ErrorIs(t, err, ErrBadParam)
}

func TestForceStealsWriter(t *testing.T) {
	l := newTestLocker()
	target := filepath.Join(t.TempDir(), "f")

	require.NoError(t, l.Acquire(target, "001", false, false))

	start := time.Now()
	require.NoError(t, l.Acquire(target, "002", true, false))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, l.LeaseTime, "steal must observe the quiet period")

	n, err := lockNames(target, "002", false)
	require.NoError(t, err)
	assert.Equal(t, []string{n.flink}, lockSiblings(t, target), "only the thief's lock survives")
}

func TestForceStealsManyReaders(t *testing.T) {
	l := newTestLocker()
	target := filepath.Join(t.TempDir(), "f")

	for _, owner := range []string{"001", "002", "003"} {
		require.NoError(t, l.Acquire(target, owner, false, true))
	}

	require.NoError(t, l.Acquire(target, "004", true, false))

	n, err := lockNames(target, "004", false)
	require.NoError(t, err)
	assert.Equal(t, []string{n.flink}, lockSiblings(t, target))
}

func TestForceWithoutContentionSkipsQuietPeriod(t *testing.T) {
	l := newTestLocker()
	l.LeaseTime = 2 * time.Second
	target := filepath.Join(t.TempDir(), "f")

	start := time.Now()
	require.NoError(t, l.Acquire(target, "001", true, false))
	assert.Less(t, time.Since(start), l.LeaseTime, "nothing stolen, nothing to wait for")
}

func TestNoResidueAfterFailedAcquire(t *testing.T) {
	l := newTestLocker()
	target := filepath.Join(t.TempDir(), "f")

	require.NoError(t, l.Acquire(target, "001", false, false))
	require.Error(t, l.Acquire(target, "002", false, true))

	for _, s := range lockSiblings(t, target) {
		assert.NotContains(t, s, ".002.", "failed acquire left residue: %s", s)
	}
}

func TestReassertAfterCrashedExclusivePhase(t *testing.T) {
	l := newTestLocker()
	target := filepath.Join(t.TempDir(), "f")

	n, err := lockNames(target, "001", false)
	require.NoError(t, err)

	// Simulate a prior attempt by the same owner that died between
	// writing the exclusive lockfile and removing it.
	require.NoError(t, os.WriteFile(n.exclusive, []byte(n.xlink), 0o644))

	require.NoError(t, l.Acquire(target, "001", false, false))
	assert.Equal(t, []string{n.flink}, lockSiblings(t, target))
}

func TestForeignExclusiveBlocksWithoutForce(t *testing.T) {
	l := newTestLocker()
	target := filepath.Join(t.TempDir(), "f")

	n, err := lockNames(target, "001", false)
	require.NoError(t, err)

	// A foreign contender's exclusive lockfile that never goes away.
	foreign := target + lockSuffix + ".otherhost.999.xw"
	require.NoError(t, os.WriteFile(n.exclusive, []byte(foreign), 0o644))

	err = l.Acquire(target, "001", false, false)
	require.ErrorIs(t, err, ErrExclusiveOpen, "retries must exhaust against a foreign exclusive lockfile")
}

func TestForceBreaksForeignExclusive(t *testing.T) {
	l := newTestLocker()
	target := filepath.Join(t.TempDir(), "f")

	n, err := lockNames(target, "001", false)
	require.NoError(t, err)

	foreign := target + lockSuffix + ".otherhost.999.xw"
	require.NoError(t, os.WriteFile(n.exclusive, []byte(foreign), 0o644))

	require.NoError(t, l.Acquire(target, "001", true, false))
	assert.Equal(t, []string{n.flink}, lockSiblings(t, target))
}

func TestConcurrentWritersMutualExclusion(t *testing.T) {
	l := newTestLocker()
	target := filepath.Join(t.TempDir(), "f")

	const contenders = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded []string
	)
	for i := 0; i < contenders; i++ {
		owner := string(rune('A' + i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(target, owner, false, false); err == nil {
				mu.Lock()
				succeeded = append(succeeded, owner)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, succeeded, 1, "exactly one concurrent writer may win")

	n, err := lockNames(target, succeeded[0], false)
	require.NoError(t, err)
	assert.Equal(t, []string{n.flink}, lockSiblings(t, target))
}

func TestConcurrentReadersAllSucceed(t *testing.T) {
	l := newTestLocker()
	target := filepath.Join(t.TempDir(), "f")

	const readers = 6
	var wg sync.WaitGroup
	errs := make([]error, readers)
	for i := 0; i < readers; i++ {
		owner := string(rune('A' + i))
		idx := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Readers only contend on the exclusive phase; retry
			// until taken.
			deadline := time.Now().Add(10 * time.Second)
			for {
				err := l.Acquire(target, owner, false, true)
				if err == nil || time.Now().After(deadline) {
					errs[idx] = err
					return
				}
				if !errors.Is(err, ErrExclusiveOpen) && !errors.Is(err, ErrInodeMismatch) {
					errs[idx] = err
					return
				}
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "reader %d", i)
	}
	assert.Len(t, lockSiblings(t, target), readers)
}

func TestConcurrentMixedModesNeverOverlap(t *testing.T) {
	l := newTestLocker()
	target := filepath.Join(t.TempDir(), "f")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		writers int
		readers int
	)
	for i := 0; i < 10; i++ {
		owner := string(rune('A' + i))
		readonly := i%2 == 0
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(target, owner, false, readonly); err != nil {
				return
			}
			mu.Lock()
			if readonly {
				readers++
			} else {
				writers++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	// One writer or any number of readers, never both.
	if writers > 0 {
		assert.Equal(t, 1, writers, "at most one writer")
		assert.Zero(t, readers, "writer excludes readers")
	} else {
		assert.Positive(t, readers, "somebody must have won")
	}
}
