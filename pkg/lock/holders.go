package lock

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Holder describes one held final lock on a target.
type Holder struct {
	// Path is the full path of the final lock file.
	Path string

	// Host and Owner identify the lock instance.
	Host  string
	Owner string

	// Readonly reports whether this is a reader lock.
	Readonly bool

	// Age is the time since the lock was last refreshed.
	Age time.Duration
}

// Holders lists the final locks currently held on target, oldest refresh
// last. Exclusive-phase remnants and unrelated siblings are ignored; only
// well-formed final lock names are reported.
func Holders(target string) ([]Holder, error) {
	if target == "" {
		return nil, ErrBadParam
	}

	dir, base := filepath.Split(target)
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var holders []Holder
	for _, entry := range entries {
		name := entry.Name()
		host, owner, readonly, ok := parseFinalName(base, name)
		if !ok {
			continue
		}
		fi, err := os.Lstat(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		age := now.Sub(fi.ModTime()).Truncate(time.Second)
		if age < 0 {
			age = 0
		}
		holders = append(holders, Holder{
			Path:     filepath.Join(dir, name),
			Host:     host,
			Owner:    owner,
			Readonly: readonly,
			Age:      age,
		})
	}
	sort.SliceStable(holders, func(i, j int) bool { return holders[i].Age < holders[j].Age })
	return holders, nil
}

// parseFinalName splits a final lock basename of the form
// <base>.xenlk.<host>.<owner>.f{r,w}. The owner is taken as the last
// dot-separated field before the mode suffix and everything before it is the
// host, so dotted hostnames parse intact; an owner id that itself contains a
// dot is split at its last dot.
func parseFinalName(base, name string) (host, owner string, readonly, ok bool) {
	prefix := base + lockSuffix + "."
	if !strings.HasPrefix(name, prefix) {
		return "", "", false, false
	}
	rest := name[len(prefix):]

	var mode byte
	switch {
	case strings.HasSuffix(rest, ".fr"):
		mode = 'r'
	case strings.HasSuffix(rest, ".fw"):
		mode = 'w'
	default:
		return "", "", false, false
	}
	rest = rest[:len(rest)-len(".fx")]

	i := strings.LastIndexByte(rest, '.')
	if i <= 0 || i == len(rest)-1 {
		return "", "", false, false
	}
	return rest[:i], rest[i+1:], mode == 'r', true
}
