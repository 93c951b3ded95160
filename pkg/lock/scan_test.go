package lock

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
		t.Fatal(err)
	}
}

func scanTarget(t *testing.T) (string, names) {
	t.Helper()
	target := filepath.Join(t.TempDir(), "data")
	n, err := lockNames(target, "001", false)
	if err != nil {
		t.Fatal(err)
	}
	return target, n
}

func TestScanEmptyDirectory(t *testing.T) {
	target, n := scanTarget(t)
	conflict, stole := scanHolders(target, n, false, false, writerHeld)
	if conflict || stole {
		t.Errorf("empty directory: conflict=%v stole=%v", conflict, stole)
	}
}

func TestScanIgnoresOwnFinalLock(t *testing.T) {
	target, n := scanTarget(t)
	touch(t, target)
	touch(t, n.exclusive)
	touch(t, n.flink)

	// The target, the exclusive lockfile and our own final lock are all
	// excluded; a reassert must not conflict with itself.
	if conflict, _ := scanHolders(target, n, false, false, writerHeld); conflict {
		t.Error("own final lock reported as writer conflict")
	}
	if conflict, _ := scanHolders(target, n, false, false, readerHeld); conflict {
		t.Error("own final lock reported as reader conflict")
	}
}

func TestScanForeignWriterConflicts(t *testing.T) {
	target, n := scanTarget(t)
	touch(t, target+".xenlk.otherhost.002.fw")

	if conflict, _ := scanHolders(target, n, false, false, writerHeld); !conflict {
		t.Error("foreign writer not reported")
	}
}

func TestScanForeignReaderConflictsForWriter(t *testing.T) {
	target, n := scanTarget(t)
	touch(t, target+".xenlk.otherhost.002.fr")

	if conflict, _ := scanHolders(target, n, false, false, readerHeld); !conflict {
		t.Error("foreign reader must block a writer")
	}
}

func TestScanForeignReaderToleratedByReader(t *testing.T) {
	target, n := scanTarget(t)
	touch(t, target+".xenlk.otherhost.002.fr")

	if conflict, _ := scanHolders(target, n, false, true, readerHeld); conflict {
		t.Error("foreign reader must not block another reader")
	}
}

func TestScanIgnoresUnrelatedSiblings(t *testing.T) {
	target, n := scanTarget(t)
	touch(t, filepath.Join(filepath.Dir(target), "unrelated.fw"))

	if conflict, _ := scanHolders(target, n, false, false, writerHeld); conflict {
		t.Error("sibling without the target prefix reported as conflict")
	}
}

func TestScanForceRemovesEverything(t *testing.T) {
	target, n := scanTarget(t)
	touch(t, target)
	foreign := []string{
		target + ".xenlk.otherhost.002.fw",
		target + ".xenlk.otherhost.003.fr",
		target + ".xenlk.otherhost.004.xw",
	}
	for _, f := range foreign {
		touch(t, f)
	}

	conflict, stole := scanHolders(target, n, true, false, writerHeld)
	if conflict {
		t.Error("force scan must not report conflicts")
	}
	if !stole {
		t.Error("force scan with foreign locks must report stole")
	}
	for _, f := range foreign {
		if _, err := os.Lstat(f); !os.IsNotExist(err) {
			t.Errorf("foreign lock survived force scan: %s", f)
		}
	}
	if _, err := os.Lstat(target); err != nil {
		t.Error("force scan must not remove the target itself")
	}
}
