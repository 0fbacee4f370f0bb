// Package testutil provides testing utilities for claim store agent tests.
package testutil

import (
	"crypto/sha1"
	"encoding/hex"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/claimstore/agent/internal/naming"
)

// Identity returns the content identity (SHA-1 hex) of seed.
func Identity(seed string) string {
	sum := sha1.Sum([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// Unlocked returns the unlocked name for seed's identity and kind.
func Unlocked(t *testing.T, seed string, kind naming.Kind) naming.Name {
	t.Helper()

	n, err := naming.New(Identity(seed), kind)
	if err != nil {
		t.Fatalf("failed to build name for %q: %v", seed, err)
	}
	return n
}

// Suffixed returns seed's name carrying a lock suffix stamped at ts.
func Suffixed(t *testing.T, seed string, kind naming.Kind, state naming.State, ts time.Time) naming.Name {
	t.Helper()

	return Unlocked(t, seed, kind).Locked(ts).WithState(state)
}

// SetupDirs creates each directory on fsys.
func SetupDirs(t *testing.T, fsys afero.Fs, dirs ...string) {
	t.Helper()

	for _, dir := range dirs {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("failed to create directory %s: %v", dir, err)
		}
	}
}

// DropFile writes a payload file called name into dir, as an upstream
// producer would, and returns its path.
func DropFile(t *testing.T, fsys afero.Fs, dir, name string) string {
	t.Helper()

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create directory %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := afero.WriteFile(fsys, path, []byte("payload:"+name), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}

// DropBody writes a message-body file for n into dir.
func DropBody(t *testing.T, fsys afero.Fs, dir string, n naming.Name) string {
	t.Helper()

	return DropFile(t, fsys, dir, n.String())
}

// ListNames returns the sorted base names of the regular files in dir.
func ListNames(t *testing.T, fsys afero.Fs, dir string) []string {
	t.Helper()

	infos, err := afero.ReadDir(fsys, dir)
	if err != nil {
		t.Fatalf("failed to list %s: %v", dir, err)
	}
	var names []string
	for _, info := range infos {
		if !info.IsDir() {
			names = append(names, info.Name())
		}
	}
	sort.Strings(names)
	return names
}

// AssertNames fails the test unless dir holds exactly want.
func AssertNames(t *testing.T, fsys afero.Fs, dir string, want ...string) {
	t.Helper()

	got := ListNames(t, fsys, dir)
	sorted := append([]string(nil), want...)
	sort.Strings(sorted)
	if len(got) != len(sorted) {
		t.Fatalf("%s holds %v, want %v", dir, got, sorted)
	}
	for i := range got {
		if got[i] != sorted[i] {
			t.Fatalf("%s holds %v, want %v", dir, got, sorted)
		}
	}
}
