package storefs

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
)

func writeFile(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll(%s): %v", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

func readFile(t *testing.T, fsys afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}
	return string(data)
}

// fileSystems returns the OS-backed and in-memory variants under test.
func fileSystems(t *testing.T) map[string]struct {
	fsys afero.Fs
	root string
} {
	return map[string]struct {
		fsys afero.Fs
		root string
	}{
		"os":  {NewOsFs(), t.TempDir()},
		"mem": {afero.NewMemMapFs(), "/store"},
	}
}

func TestRenameNoReplace(t *testing.T) {
	for name, tc := range fileSystems(t) {
		t.Run(name, func(t *testing.T) {
			src := filepath.Join(tc.root, "a")
			dst := filepath.Join(tc.root, "b")
			writeFile(t, tc.fsys, src, "payload")

			if err := RenameNoReplace(tc.fsys, src, dst); err != nil {
				t.Fatalf("RenameNoReplace() error: %v", err)
			}
			if ok, _ := afero.Exists(tc.fsys, src); ok {
				t.Error("source still exists after rename")
			}
			if got := readFile(t, tc.fsys, dst); got != "payload" {
				t.Errorf("target content = %q, want %q", got, "payload")
			}
		})
	}
}

func TestRenameNoReplace_TargetExists(t *testing.T) {
	for name, tc := range fileSystems(t) {
		t.Run(name, func(t *testing.T) {
			src := filepath.Join(tc.root, "a")
			dst := filepath.Join(tc.root, "b")
			writeFile(t, tc.fsys, src, "mine")
			writeFile(t, tc.fsys, dst, "theirs")

			err := RenameNoReplace(tc.fsys, src, dst)
			if !errors.Is(err, fs.ErrExist) {
				t.Fatalf("RenameNoReplace() error = %v, want fs.ErrExist", err)
			}
			if !IsConflict(err) {
				t.Error("IsConflict() = false, want true")
			}
			if got := readFile(t, tc.fsys, dst); got != "theirs" {
				t.Errorf("target overwritten: %q", got)
			}
			if got := readFile(t, tc.fsys, src); got != "mine" {
				t.Errorf("source changed: %q", got)
			}
		})
	}
}

func TestRenameNoReplace_SourceMissing(t *testing.T) {
	for name, tc := range fileSystems(t) {
		t.Run(name, func(t *testing.T) {
			if err := tc.fsys.MkdirAll(tc.root, 0o755); err != nil {
				t.Fatal(err)
			}
			err := RenameNoReplace(tc.fsys, filepath.Join(tc.root, "gone"), filepath.Join(tc.root, "b"))
			if !errors.Is(err, fs.ErrNotExist) {
				t.Fatalf("RenameNoReplace() error = %v, want fs.ErrNotExist", err)
			}
			if !IsConflict(err) {
				t.Error("IsConflict() = false, want true")
			}
		})
	}
}

func TestRenameNoReplace_RaceHasOneWinner(t *testing.T) {
	for name, tc := range fileSystems(t) {
		t.Run(name, func(t *testing.T) {
			src := filepath.Join(tc.root, "contended")
			writeFile(t, tc.fsys, src, "x")

			const racers = 16
			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < racers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					dst := filepath.Join(tc.root, fmt.Sprintf("claimed-%02d", i))
					if err := RenameNoReplace(tc.fsys, src, dst); err == nil {
						wins.Add(1)
					} else if !IsConflict(err) {
						t.Errorf("racer %d: unexpected error %v", i, err)
					}
				}(i)
			}
			wg.Wait()

			if got := wins.Load(); got != 1 {
				t.Errorf("winners = %d, want 1", got)
			}
			entries, err := afero.ReadDir(tc.fsys, tc.root)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 1 {
				t.Errorf("files after race = %d, want 1", len(entries))
			}
		})
	}
}

func TestMove_AcrossDirectories(t *testing.T) {
	for name, tc := range fileSystems(t) {
		t.Run(name, func(t *testing.T) {
			src := filepath.Join(tc.root, "in", "a")
			dst := filepath.Join(tc.root, "out", "a")
			writeFile(t, tc.fsys, src, "payload")
			if err := tc.fsys.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				t.Fatal(err)
			}

			if err := Move(tc.fsys, src, dst); err != nil {
				t.Fatalf("Move() error: %v", err)
			}
			if got := readFile(t, tc.fsys, dst); got != "payload" {
				t.Errorf("moved content = %q", got)
			}
		})
	}
}

func TestCopyMove(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/in/a", "payload")
	if err := fsys.MkdirAll("/out", 0o755); err != nil {
		t.Fatal(err)
	}

	if err := copyMove(fsys, "/in/a", "/out/a"); err != nil {
		t.Fatalf("copyMove() error: %v", err)
	}
	if got := readFile(t, fsys, "/out/a"); got != "payload" {
		t.Errorf("copied content = %q", got)
	}
	if ok, _ := afero.Exists(fsys, "/in/a"); ok {
		t.Error("source should be removed after copy")
	}
	if ok, _ := afero.Exists(fsys, TempName("/out/a")); ok {
		t.Error("temporary file left behind")
	}
}

func TestCopyMove_TargetExistsKeepsSource(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/in/a", "mine")
	writeFile(t, fsys, "/out/a", "theirs")

	err := copyMove(fsys, "/in/a", "/out/a")
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("copyMove() error = %v, want fs.ErrExist", err)
	}
	if got := readFile(t, fsys, "/in/a"); got != "mine" {
		t.Errorf("source content = %q", got)
	}
	if ok, _ := afero.Exists(fsys, TempName("/out/a")); ok {
		t.Error("temporary file left behind")
	}
}

func TestTempName(t *testing.T) {
	got := TempName(filepath.Join("/central", "abc.trk"))
	want := filepath.Join("/central", ".abc.trk.partial")
	if got != want {
		t.Errorf("TempName() = %q, want %q", got, want)
	}
}
