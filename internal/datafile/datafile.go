// Package datafile implements the handle to one physical message-body file
// and the rename-based transitions that make up its lifecycle.
//
// Every transition is a single no-replace rename (see storefs), so a file is
// never observed half-transitioned and a crash always leaves a name that the
// scanner can decode and, once its lock expires, reclaim:
//
//	Unlocked --Lock--> Locked --Gather--> Gathered (moved) --Unlock--> Unlocked (moved)
//	                          --Release-> Released         --Unlock--> Unlocked
//
// A lost race (target already present, or source renamed away by another
// collector) is reported as an errors.ConflictError.
//
// A DataFile is safe for concurrent use, but the intended pattern is one
// goroutine driving one handle through a collection.
package datafile

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/claimstore/agent/internal/clock"
	"github.com/claimstore/agent/internal/errors"
	"github.com/claimstore/agent/internal/naming"
	"github.com/claimstore/agent/internal/storefs"
)

// DataFile is a handle to one message-body file.
type DataFile struct {
	fs    afero.Fs
	clock clock.Clock

	mu    sync.Mutex
	dir   string
	name  naming.Name
	owner string // set by a successful Lock, cleared by Unlock
}

// Open returns a handle for the file called name inside dir. It does not touch
// the file system.
func Open(fsys afero.Fs, clk clock.Clock, dir string, name naming.Name) *DataFile {
	return &DataFile{
		fs:    fsys,
		clock: clk,
		dir:   dir,
		name:  name,
	}
}

// Name returns the current decoded name.
func (f *DataFile) Name() naming.Name {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.name
}

// Kind returns the message-body kind.
func (f *DataFile) Kind() naming.Kind {
	return f.Name().Kind
}

// State returns the current lifecycle state.
func (f *DataFile) State() naming.State {
	return f.Name().State()
}

// Dir returns the directory currently holding the file.
func (f *DataFile) Dir() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dir
}

// Path returns the full path of the file.
func (f *DataFile) Path() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return filepath.Join(f.dir, f.name.String())
}

// Owner returns the owner holding the lock through this handle, or "".
func (f *DataFile) Owner() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owner
}

// String returns the current path.
func (f *DataFile) String() string { return f.Path() }

// Lock renames the file to a freshly stamped locked name. It is the only
// admission point: whoever loses the rename gets an errors.ConflictError and
// must leave the file alone for this pass. Locking a file that still carries
// an expired suffix re-stamps it, which is how abandoned locks are reclaimed.
func (f *DataFile) Lock(owner string) error {
	if owner == "" {
		return errors.Wrap(errors.ErrNotOwner, "lock: empty owner")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	target := f.name.Locked(f.clock.Now())
	if err := f.rename("lock", f.dir, target, storefs.RenameNoReplace); err != nil {
		return err
	}
	f.owner = owner
	return nil
}

// Gather moves the locked file into destDir and marks it gathered. The lock
// timestamp is kept.
func (f *DataFile) Gather(owner, destDir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkLocked("gather", owner); err != nil {
		return err
	}
	return f.rename("gather", destDir, f.name.WithState(naming.StateGathered), storefs.Move)
}

// Release marks the locked file released without moving it.
func (f *DataFile) Release(owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkLocked("release", owner); err != nil {
		return err
	}
	return f.rename("release", f.dir, f.name.WithState(naming.StateReleased), storefs.RenameNoReplace)
}

// Unlock drops the lock suffix, leaving the file unlocked wherever it
// currently is. Unlocking an already unlocked file is a no-op. Unlock is
// accepted from any locked state so that it can always run last.
//
// A gathered file whose unlocked name already exists in the destination is
// a duplicate of content collected earlier, since identities are content
// hashes. The gathered copy is removed and Unlock succeeds. Any other target
// conflict leaves the file suffixed and returns an errors.ConflictError.
func (f *DataFile) Unlock(owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.name.IsLocked() {
		return nil
	}
	if f.owner == "" || f.owner != owner {
		return fmt.Errorf("unlock %s: %w", f.name, errors.ErrNotOwner)
	}
	err := f.rename("unlock", f.dir, f.name.Unlocked(), storefs.RenameNoReplace)
	if err != nil && f.name.State() == naming.StateGathered && errors.Is(err, fs.ErrExist) {
		err = f.dropDuplicate()
	}
	if err != nil {
		return err
	}
	f.owner = ""
	return nil
}

// dropDuplicate removes the gathered file and points the handle at the
// unlocked copy already present. Must be called with f.mu held.
func (f *DataFile) dropDuplicate() error {
	src := filepath.Join(f.dir, f.name.String())
	if err := f.fs.Remove(src); err != nil {
		return fmt.Errorf("unlock %s: remove duplicate: %w", src, err)
	}
	f.name = f.name.Unlocked()
	return nil
}

func (f *DataFile) checkLocked(op, owner string) error {
	if f.owner == "" || f.owner != owner {
		return fmt.Errorf("%s %s: %w", op, f.name, errors.ErrNotOwner)
	}
	if f.name.State() != naming.StateLocked {
		return fmt.Errorf("%s %s: %w", op, f.name, errors.ErrNotLocked)
	}
	return nil
}

// rename moves the file to target inside dir and updates the handle on
// success. Must be called with f.mu held.
func (f *DataFile) rename(op, dir string, target naming.Name, mv func(afero.Fs, string, string) error) error {
	src := filepath.Join(f.dir, f.name.String())
	dst := filepath.Join(dir, target.String())

	if err := mv(f.fs, src, dst); err != nil {
		if storefs.IsConflict(err) {
			return errors.NewConflictError(op, src, err).WithTarget(dst)
		}
		return fmt.Errorf("%s %s: %w", op, src, err)
	}
	f.dir = dir
	f.name = target
	return nil
}
