package cleanup

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/afero"

	"github.com/claimstore/agent/internal/clock"
	"github.com/claimstore/agent/internal/logging"
)

// ErrJobFinished is returned when a job is executed twice.
var ErrJobFinished = errors.New("cleanup job already finished")

// Executor runs cleanup jobs using their snapshotted resources
type Executor struct {
	fs     afero.Fs
	clock  clock.Clock
	logger *logging.Logger
}

// NewExecutor creates an executor removing files from fsys. A nil logger
// discards output.
func NewExecutor(fsys afero.Fs, clk clock.Clock, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Executor{fs: fsys, clock: clk, logger: logger.WithComponent("cleanup")}
}

// Execute removes the job's snapshotted files. A file that has disappeared or
// changed size or modification time since the snapshot is skipped.
func (e *Executor) Execute(job *Job) error {
	if job.isFinished() {
		return ErrJobFinished
	}

	job.Status = JobStatusRunning
	job.StartedAt = e.clock.Now()

	results := &JobResults{}
	for _, sf := range job.Stale {
		path := sf.Path()
		info, err := e.fs.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			results.Skipped++
			continue
		case err != nil:
			results.Errors = append(results.Errors, fmt.Sprintf("stat %s: %v", path, err))
			continue
		case info.Size() != sf.Size || !info.ModTime().Equal(sf.ModTime):
			e.logger.Debug("temporary file changed since snapshot", "path", path)
			results.Skipped++
			continue
		}

		if err := e.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			results.Errors = append(results.Errors, fmt.Sprintf("remove %s: %v", path, err))
			continue
		}
		e.logger.Info("removed abandoned temporary file", "path", path, "size", sf.Size)
		results.Removed++
	}

	job.Results = results
	job.Status = JobStatusCompleted
	job.EndedAt = e.clock.Now()

	if len(results.Errors) > 0 && results.Removed == 0 {
		job.Status = JobStatusFailed
		msg := fmt.Sprintf("all operations failed: %d errors", len(results.Errors))
		job.addError(msg)
		return errors.New(msg)
	}
	return nil
}
