// Package messagebody layers collection behaviour over a data file.
//
// The two body kinds are a fixed protocol choice, not an extension point, so
// [New] dispatches with an exhaustive switch over naming.Kind:
//
//   - Tracked (".trk"): Lock, Gather into the central directory, Unlock.
//   - Claimed (".chk"): Lock, Release in place, Unlock.
//
// Unlock always runs once Lock has succeeded, even when the middle step
// failed, so a transient failure never hides a file from later passes.
package messagebody

import (
	"fmt"

	"github.com/claimstore/agent/internal/errors"
	"github.com/claimstore/agent/internal/naming"
)

// File is the subset of datafile.DataFile a message body drives.
type File interface {
	Name() naming.Name
	Lock(owner string) error
	Gather(owner, destDir string) error
	Release(owner string) error
	Unlock(owner string) error
}

// MessageBody collects one file.
type MessageBody interface {
	// Kind returns the kind the body was created for.
	Kind() naming.Kind
	// File returns the underlying data file.
	File() File
	// Collect runs the kind's transition sequence on behalf of owner.
	// A lost Lock race returns an errors.ConflictError; a failed middle step
	// or trailing Unlock returns an errors.CollectionError.
	Collect(owner, destDir string) error
}

// New returns the body variant for f's kind.
func New(f File) (MessageBody, error) {
	switch k := f.Name().Kind; k {
	case naming.KindTracked:
		return &Tracked{file: f}, nil
	case naming.KindClaimed:
		return &Claimed{file: f}, nil
	default:
		return nil, errors.NewFilenameError(f.Name().String(), fmt.Sprintf("no message body for kind %q", k))
	}
}

// Tracked bodies are gathered into the central directory.
type Tracked struct {
	file File
}

// Kind returns naming.KindTracked.
func (*Tracked) Kind() naming.Kind { return naming.KindTracked }

// File returns the underlying data file.
func (b *Tracked) File() File { return b.file }

// Collect locks the file, gathers it into destDir and unlocks it there.
func (b *Tracked) Collect(owner, destDir string) error {
	return collect(b.file, owner, "gather", func() error {
		return b.file.Gather(owner, destDir)
	})
}

// Claimed bodies are released where they are.
type Claimed struct {
	file File
}

// Kind returns naming.KindClaimed.
func (*Claimed) Kind() naming.Kind { return naming.KindClaimed }

// File returns the underlying data file.
func (b *Claimed) File() File { return b.file }

// Collect locks the file, releases it in place and unlocks it. destDir is
// not used by claimed bodies.
func (b *Claimed) Collect(owner, _ string) error {
	return collect(b.file, owner, "release", func() error {
		return b.file.Release(owner)
	})
}

func collect(f File, owner, step string, middle func() error) error {
	if err := f.Lock(owner); err != nil {
		return err
	}

	stepErr := middle()
	unlockErr := f.Unlock(owner)

	name := f.Name()
	switch {
	case stepErr != nil && unlockErr != nil:
		return errors.NewCollectionError(step, errors.Join(stepErr, unlockErr)).
			WithFile(name.String()).WithKind(string(name.Kind))
	case stepErr != nil:
		return errors.NewCollectionError(step, stepErr).
			WithFile(name.String()).WithKind(string(name.Kind))
	case unlockErr != nil:
		return errors.NewCollectionError("unlock", unlockErr).
			WithFile(name.String()).WithKind(string(name.Kind))
	}
	return nil
}
