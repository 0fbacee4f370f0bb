// Package storefs provides the file-system operations the claim store relies
// on for mutual exclusion: renames that never replace an existing target.
//
// A plain rename(2) silently overwrites its target, which would let two
// collectors both "win" the same lock name. [RenameNoReplace] fails with an
// error matching fs.ErrExist instead, and with fs.ErrNotExist when the source
// has already been renamed away by someone else. Both outcomes mean the caller
// lost the race.
//
// The package works on any afero.Fs. File systems returned by [NewOsFs] use
// the strongest primitive the platform offers (renameat2 with
// RENAME_NOREPLACE on Linux, link+unlink elsewhere); other afero file systems
// such as afero.MemMapFs fall back to a check-then-rename serialized within
// the process.
package storefs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/afero"
)

// NoReplaceRenamer is implemented by file systems that can rename without
// replacing an existing target.
type NoReplaceRenamer interface {
	RenameNoReplace(oldname, newname string) error
}

// OsFs is afero's OS file system with a native no-replace rename.
type OsFs struct {
	afero.OsFs
}

// NewOsFs returns the OS file system used in production.
func NewOsFs() afero.Fs {
	return &OsFs{}
}

// Name identifies the file system.
func (*OsFs) Name() string { return "storefs.OsFs" }

// RenameNoReplace renames oldname to newname unless newname exists.
func (*OsFs) RenameNoReplace(oldname, newname string) error {
	return renameNoReplace(oldname, newname)
}

// genericMu serializes the check-then-rename fallback so it is atomic with
// respect to other callers in this process.
var genericMu sync.Mutex

// RenameNoReplace renames oldname to newname on fsys, failing with an error
// matching fs.ErrExist if newname already exists and fs.ErrNotExist if
// oldname is gone.
func RenameNoReplace(fsys afero.Fs, oldname, newname string) error {
	if r, ok := fsys.(NoReplaceRenamer); ok {
		return r.RenameNoReplace(oldname, newname)
	}

	genericMu.Lock()
	defer genericMu.Unlock()

	if _, err := fsys.Stat(newname); err == nil {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: fs.ErrExist}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: err}
	}
	if _, err := fsys.Stat(oldname); err != nil {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: err}
	}
	return fsys.Rename(oldname, newname)
}

// Move is RenameNoReplace across directories. When the directories live on
// different devices the file is copied to a hidden temporary name next to
// newname, renamed into place without replacement, and the source removed.
// A crash during the copy leaves only the temporary file behind; a crash
// after the final rename leaves both copies, and the source is still
// recoverable through lock expiry.
func Move(fsys afero.Fs, oldname, newname string) error {
	err := RenameNoReplace(fsys, oldname, newname)
	if err == nil || !IsCrossDevice(err) {
		return err
	}
	return copyMove(fsys, oldname, newname)
}

// IsConflict reports whether err means a no-replace rename lost a race.
func IsConflict(err error) bool {
	return errors.Is(err, fs.ErrExist) || errors.Is(err, fs.ErrNotExist)
}

// IsCrossDevice reports whether err is a rename across file systems.
func IsCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

// TempName returns the hidden name used while copying into dir.
func TempName(newname string) string {
	return filepath.Join(filepath.Dir(newname), "."+filepath.Base(newname)+".partial")
}

// IsTempName reports whether base is a copy-in-progress name made by TempName.
func IsTempName(base string) bool {
	return strings.HasPrefix(base, ".") && strings.HasSuffix(base, ".partial")
}

func copyMove(fsys afero.Fs, oldname, newname string) (err error) {
	src, err := fsys.Open(oldname)
	if err != nil {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: err}
	}
	defer func() { _ = src.Close() }()

	tmp := TempName(newname)
	dst, err := fsys.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: err}
	}
	defer func() {
		if err != nil {
			_ = fsys.Remove(tmp)
		}
	}()

	if _, err = io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("copy %s: %w", oldname, err)
	}
	if err = dst.Sync(); err != nil {
		_ = dst.Close()
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err = dst.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err = RenameNoReplace(fsys, tmp, newname); err != nil {
		return err
	}
	if rmErr := fsys.Remove(oldname); rmErr != nil {
		return fmt.Errorf("remove source after copy: %w", rmErr)
	}
	return nil
}

// linkRename emulates a no-replace rename with link(2), which fails if the
// target exists, followed by unlink of the source. If the source was
// unlinked concurrently the new link is rolled back so exactly one of the
// racing callers succeeds.
func linkRename(oldname, newname string) error {
	if err := os.Link(oldname, newname); err != nil {
		var le *os.LinkError
		if errors.As(err, &le) && !IsConflict(le.Err) && !IsCrossDevice(le.Err) {
			// Hard links unsupported (FAT, some SMB mounts).
			return statRename(oldname, newname)
		}
		return err
	}
	if err := os.Remove(oldname); err != nil {
		_ = os.Remove(newname)
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: err}
	}
	return nil
}

func statRename(oldname, newname string) error {
	if _, err := os.Lstat(newname); err == nil {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: fs.ErrExist}
	}
	return os.Rename(oldname, newname)
}
