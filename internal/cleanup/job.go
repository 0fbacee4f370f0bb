// Package cleanup removes copy-in-progress files abandoned by agents that
// crashed during a cross-device move.
//
// A Job snapshots the stale temporary files at creation time. Executing the
// job removes only those files, and only if they are unchanged since the
// snapshot, so a copy that resumed or finished in between is left alone.
package cleanup

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/claimstore/agent/internal/clock"
	"github.com/claimstore/agent/internal/storefs"
)

// JobStatus represents the current state of a cleanup job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// StaleFile is a temporary file marked for removal at snapshot time.
type StaleFile struct {
	Dir     string
	Name    string
	Size    int64
	ModTime time.Time
}

// Path returns the full path of the file.
func (s StaleFile) Path() string { return filepath.Join(s.Dir, s.Name) }

// Job is one sweep over a set of directories.
type Job struct {
	ID        string
	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time
	Status    JobStatus

	Dirs   []string
	MaxAge time.Duration

	// Snapshotted resources (captured at job creation time)
	Stale []StaleFile

	Results *JobResults
	Error   string
}

// JobResults contains the outcome of a cleanup job
type JobResults struct {
	Removed int
	Skipped int
	Errors  []string
}

// NewJob snapshots every temporary file in dirs whose modification time is
// more than maxAge before clk's now. Each unreadable directory is recorded in
// the job's Error and otherwise skipped.
func NewJob(fsys afero.Fs, clk clock.Clock, dirs []string, maxAge time.Duration) *Job {
	now := clk.Now()
	job := &Job{
		ID:        generateID(),
		CreatedAt: now,
		Status:    JobStatusPending,
		Dirs:      dirs,
		MaxAge:    maxAge,
	}

	cutoff := now.Add(-maxAge)
	for _, dir := range dirs {
		infos, err := afero.ReadDir(fsys, dir)
		if err != nil {
			job.addError(fmt.Sprintf("failed to list %s: %v", dir, err))
			continue
		}
		for _, info := range infos {
			if info.IsDir() || !storefs.IsTempName(info.Name()) {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			job.Stale = append(job.Stale, StaleFile{
				Dir:     dir,
				Name:    info.Name(),
				Size:    info.Size(),
				ModTime: info.ModTime(),
			})
		}
	}
	return job
}

// addError appends msg to the job's error summary.
func (j *Job) addError(msg string) {
	if j.Error != "" {
		j.Error += "; "
	}
	j.Error += msg
}

// generateID creates a short random hex ID.
// Falls back to timestamp-based ID if random generation fails.
func generateID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xFFFFFFFF)
	}
	return hex.EncodeToString(b)
}

// isFinished returns true if the job has reached a terminal state
func (j *Job) isFinished() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}
