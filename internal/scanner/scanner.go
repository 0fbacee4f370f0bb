// Package scanner lists check-in directories and decides which message-body
// files are eligible for collection.
//
// A file without a lock suffix is eligible as soon as it is older than the
// configured minimum age. A file carrying a lock suffix is eligible only once
// its lock has expired, i.e. now - lockTimestamp > lockTimeout; this is how
// files abandoned by a crashed or stalled collector get reclaimed.
//
// Unrecognised names are expected noise and are skipped silently.
package scanner

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"

	"github.com/claimstore/agent/internal/clock"
	"github.com/claimstore/agent/internal/datafile"
	"github.com/claimstore/agent/internal/errors"
	"github.com/claimstore/agent/internal/logging"
	"github.com/claimstore/agent/internal/messagebody"
	"github.com/claimstore/agent/internal/naming"
	"github.com/claimstore/agent/internal/storefs"
)

// Reasons reported in an Observation.
const (
	ReasonUnlocked    = "unlocked"
	ReasonLockExpired = "lock expired"
	ReasonLockHeld    = "lock held"
	ReasonTooNew      = "below minimum age"
	ReasonExcluded    = "excluded"
	ReasonInvalid     = "invalid name"
	ReasonPartial     = "copy in progress"
)

// Options configures a Scanner.
type Options struct {
	// MinFileAge delays unlocked files until their modification time is at
	// least this old. Zero disables the check.
	MinFileAge time.Duration
	// Exclude holds glob patterns matched against base names.
	Exclude []string
	// Logger receives listing warnings. Nil discards them.
	Logger *logging.Logger
}

// Entry is one eligible file paired with its message body.
type Entry struct {
	Dir  string
	File *datafile.DataFile
	Body messagebody.MessageBody
}

// Observation describes one directory entry without acting on it.
type Observation struct {
	Dir      string
	Name     string
	Parsed   naming.Name // zero unless Valid
	Valid    bool
	Eligible bool
	Reason   string
	ModTime  time.Time
	Size     int64
	// LockAge is now - lock timestamp for suffixed names.
	LockAge time.Duration
}

// State returns the decoded lifecycle state, or "" for invalid names.
func (o Observation) State() string {
	if !o.Valid {
		return ""
	}
	return o.Parsed.State().String()
}

// Scanner enumerates eligible message bodies.
type Scanner struct {
	fs         afero.Fs
	clock      clock.Clock
	logger     *logging.Logger
	minFileAge time.Duration
	exclude    []glob.Glob
}

// New creates a Scanner. It fails with a ConfigError if an exclude pattern
// does not compile.
func New(fsys afero.Fs, clk clock.Clock, opts Options) (*Scanner, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	s := &Scanner{
		fs:         fsys,
		clock:      clk,
		logger:     logger.WithComponent("scanner"),
		minFileAge: opts.MinFileAge,
	}
	for _, pattern := range opts.Exclude {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.NewConfigError(fmt.Sprintf("invalid exclude pattern %q", pattern), err)
		}
		s.exclude = append(s.exclude, g)
	}
	return s, nil
}

// Enumerate yields the eligible entries of dirs. Each call lists the
// directories afresh; a directory that cannot be listed is logged and
// skipped. The order within a directory is by name.
func (s *Scanner) Enumerate(dirs []string, lockTimeout time.Duration) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, dir := range dirs {
			infos, ok := s.list(dir)
			if !ok {
				continue
			}
			now := s.clock.Now()
			for _, info := range infos {
				obs := s.classify(dir, info, now, lockTimeout)
				if !obs.Eligible {
					continue
				}
				f := datafile.Open(s.fs, s.clock, dir, obs.Parsed)
				body, err := messagebody.New(f)
				if err != nil {
					continue
				}
				if !yield(Entry{Dir: dir, File: f, Body: body}) {
					return
				}
			}
		}
	}
}

// Inspect returns an Observation for every file in dirs, eligible or not.
func (s *Scanner) Inspect(dirs []string, lockTimeout time.Duration) []Observation {
	var out []Observation
	for _, dir := range dirs {
		infos, ok := s.list(dir)
		if !ok {
			continue
		}
		now := s.clock.Now()
		for _, info := range infos {
			out = append(out, s.classify(dir, info, now, lockTimeout))
		}
	}
	return out
}

// list returns the regular files of dir sorted by name.
func (s *Scanner) list(dir string) ([]os.FileInfo, bool) {
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		s.logger.WithDirectory(dir).Warn("failed to list directory", "error", err)
		return nil, false
	}
	files := infos[:0]
	for _, info := range infos {
		if info.Mode().IsRegular() {
			files = append(files, info)
		}
	}
	return files, true
}

func (s *Scanner) classify(dir string, info os.FileInfo, now time.Time, lockTimeout time.Duration) Observation {
	obs := Observation{
		Dir:     dir,
		Name:    info.Name(),
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}

	if storefs.IsTempName(obs.Name) {
		obs.Reason = ReasonPartial
		return obs
	}
	for _, g := range s.exclude {
		if g.Match(obs.Name) {
			obs.Reason = ReasonExcluded
			return obs
		}
	}

	n, err := naming.Parse(obs.Name)
	if err != nil {
		obs.Reason = ReasonInvalid
		return obs
	}
	obs.Parsed = n
	obs.Valid = true

	if !n.IsLocked() {
		if s.minFileAge > 0 && now.Sub(obs.ModTime) < s.minFileAge {
			obs.Reason = ReasonTooNew
			return obs
		}
		obs.Eligible = true
		obs.Reason = ReasonUnlocked
		return obs
	}

	obs.LockAge = now.Sub(n.LockedAt())
	if obs.LockAge > lockTimeout {
		obs.Eligible = true
		obs.Reason = ReasonLockExpired
	} else {
		obs.Reason = ReasonLockHeld
	}
	return obs
}

// Path returns the full path of the observed file.
func (o Observation) Path() string {
	return filepath.Join(o.Dir, o.Name)
}
