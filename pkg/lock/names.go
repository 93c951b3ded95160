package lock

import (
	"fmt"
	"os"
)

const (
	// lockSuffix is appended to the target path to form every auxiliary
	// file name. The full shapes are:
	//
	//	<target>.xenlk                          exclusive lockfile
	//	<target>.xenlk.<host>.<owner>.x{r,w}    exclusive-phase link
	//	<target>.xenlk.<host>.<owner>.f{r,w}    final lock
	//
	// Every contender computes these independently, so the format must
	// never change between versions.
	lockSuffix = ".xenlk"

	// maxHostname bounds the hostname component of a lock name.
	maxHostname = 128
)

// names holds the three sibling paths the protocol manipulates for one
// target/owner/mode combination.
type names struct {
	exclusive string // <target>.xenlk
	xlink     string // <target>.xenlk.<host>.<owner>.x{r,w}
	flink     string // <target>.xenlk.<host>.<owner>.f{r,w}
}

// modeChar returns the terminal mode byte of a link name.
func modeChar(readonly bool) string {
	if readonly {
		return "r"
	}
	return "w"
}

// lockNames derives the auxiliary file names for target. The owner id is an
// opaque non-empty string; (hostname, owner, mode) must uniquely identify a
// lock instance.
func lockNames(target, owner string, readonly bool) (names, error) {
	if target == "" || owner == "" {
		return names{}, ErrBadParam
	}
	host, err := os.Hostname()
	if err != nil {
		return names{}, fmt.Errorf("%w: hostname: %v", ErrBadParam, err)
	}
	if len(host) > maxHostname {
		host = host[:maxHostname]
	}

	mode := modeChar(readonly)
	return names{
		exclusive: target + lockSuffix,
		xlink:     fmt.Sprintf("%s%s.%s.%s.x%s", target, lockSuffix, host, owner, mode),
		flink:     fmt.Sprintf("%s%s.%s.%s.f%s", target, lockSuffix, host, owner, mode),
	}, nil
}
