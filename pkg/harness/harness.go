// Package harness exercises the lock library against a shared counter file.
//
// Writers append monotonically increasing records under a writer lock; the
// verifier replays the file and reports every gap. Any break in the sequence
// means two writers held the lock at once.
package harness

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/xenlk/xenlk/internal/logger"
	"github.com/xenlk/xenlk/pkg/lock"
)

// tailWindow bounds how much of the file's tail is read to find the last
// record.
const tailWindow = 256

// Record is one line of the counter file: "count pid time".
type Record struct {
	Count int
	PID   int
	Time  int64
}

func (r Record) String() string {
	return fmt.Sprintf("%d %d %d", r.Count, r.PID, r.Time)
}

// AppendRecord reads the last record of the counter file at path and appends
// its successor. The caller must hold a writer lock on path.
func AppendRecord(path string) (Record, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return Record{}, fmt.Errorf("open counter file: %w", err)
	}
	defer f.Close()

	next := Record{PID: os.Getpid(), Time: time.Now().Unix()}

	fi, err := f.Stat()
	if err != nil {
		return Record{}, fmt.Errorf("stat counter file: %w", err)
	}
	if fi.Size() > 0 {
		if fi.Size() > tailWindow {
			if _, err := f.Seek(-tailWindow, io.SeekEnd); err != nil {
				return Record{}, fmt.Errorf("seek counter file: %w", err)
			}
		}
		buf := make([]byte, tailWindow)
		n, _ := f.Read(buf)
		if last, ok := lastRecord(buf[:n]); ok {
			next.Count = last.Count + 1
		}
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return Record{}, fmt.Errorf("seek counter file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%s\n", next); err != nil {
		return Record{}, fmt.Errorf("append counter record: %w", err)
	}
	return next, nil
}

// lastRecord parses the final complete line of a tail window.
func lastRecord(buf []byte) (Record, bool) {
	buf = bytes.TrimRight(buf, "\n")
	i := bytes.LastIndexByte(buf, '\n')
	var rec Record
	if _, err := fmt.Sscanf(string(buf[i+1:]), "%d %d %d", &rec.Count, &rec.PID, &rec.Time); err != nil {
		return Record{}, false
	}
	return rec, true
}

// Violation describes a break in the counter sequence.
type Violation struct {
	Line     int
	Expected int
	Record   Record
}

func (v Violation) String() string {
	return fmt.Sprintf("line %d: expected count %d, got %q", v.Line, v.Expected, v.Record)
}

// Verify replays the counter file and returns the number of records read
// and every sequence violation found. A clean file yields no violations.
func Verify(path string) (int, []Violation, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, fmt.Errorf("open counter file: %w", err)
	}
	defer f.Close()

	var (
		violations []Violation
		expected   int
		lines      int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
		var rec Record
		if _, err := fmt.Sscanf(scanner.Text(), "%d %d %d", &rec.Count, &rec.PID, &rec.Time); err != nil {
			violations = append(violations, Violation{Line: lines, Expected: expected, Record: rec})
			continue
		}
		if rec.Count != expected {
			violations = append(violations, Violation{Line: lines, Expected: expected, Record: rec})
		}
		expected = rec.Count + 1
	}
	if err := scanner.Err(); err != nil {
		return lines, violations, fmt.Errorf("read counter file: %w", err)
	}
	return lines, violations, nil
}

// Soak runs the randomized lock loop until the context is cancelled: sleep a
// random interval, take a random reader or writer lock, append a counter
// record when writing, release. readonlyBias is the probability of choosing
// a reader lock.
func Soak(ctx context.Context, l *lock.Locker, target, owner string, readonlyBias float64) error {
	interval := l.MaxBackoff
	if interval <= 0 {
		interval = lock.DefaultMaxBackoff
	}
	logger.Info("soak starting", "target", target, "owner", owner, "readonly_bias", readonlyBias)
	for {
		select {
		case <-ctx.Done():
			logger.Info("soak stopping", "target", target, "owner", owner)
			return nil
		case <-time.After(time.Duration(rand.Int63n(int64(interval)) + 1)):
		}

		readonly := rand.Float64() < readonlyBias
		if err := l.Acquire(target, owner, false, readonly); err != nil {
			logger.Debug("soak acquire failed", "owner", owner, "readonly", readonly, "error", err)
			continue
		}

		if !readonly {
			if rec, err := AppendRecord(target); err != nil {
				logger.Warn("soak counter append failed", "owner", owner, "error", err)
			} else {
				logger.Debug("soak counter appended", "owner", owner, "count", rec.Count)
			}
		}

		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(rand.Int63n(int64(interval)) + 1)):
		}

		if err := l.Release(target, owner, readonly); err != nil {
			logger.Warn("soak release failed", "owner", owner, "error", err)
		}
	}
}

// Perf measures repeated writer acquires on target: the first acquire takes
// the lock, every subsequent one exercises the reassert path. The single
// final lock is released at the end.
func Perf(l *lock.Locker, target, owner string, iterations int) (time.Duration, error) {
	start := time.Now()
	for i := 0; i < iterations; i++ {
		if err := l.Acquire(target, owner, false, false); err != nil {
			return time.Since(start), fmt.Errorf("failed to get lock at iteration %d: %w", i+1, err)
		}
	}
	err := l.Release(target, owner, false)
	return time.Since(start), err
}
