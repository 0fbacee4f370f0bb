// Package collector runs the polling loop that moves message bodies out of
// the check-in directories.
//
// Each pass enumerates the eligible bodies and collects them on a bounded
// worker pool. Per-file errors never escape a pass: lost lock races are
// logged at debug level, failed collections at warning level, and both files
// are simply offered again on a later pass.
package collector

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/claimstore/agent/internal/clock"
	"github.com/claimstore/agent/internal/errors"
	"github.com/claimstore/agent/internal/event"
	"github.com/claimstore/agent/internal/logging"
	"github.com/claimstore/agent/internal/naming"
	"github.com/claimstore/agent/internal/scanner"
)

// ErrAlreadyRunning is returned by Start on a running collector.
var ErrAlreadyRunning = errors.New("collector already running")

// Default option values.
const (
	DefaultMaxWorkers    = 4
	DefaultWatchDebounce = 200 * time.Millisecond
)

// State is the collector lifecycle state.
type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// Options configures a Collector.
type Options struct {
	CheckInDirs  []string
	CentralDir   string
	PollInterval time.Duration
	LockTimeout  time.Duration
	// MaxWorkers bounds concurrent collections within a pass.
	MaxWorkers int
	// Watch wakes the loop early when producers drop files.
	Watch         bool
	WatchDebounce time.Duration
	// Owner identifies this agent in lock ownership checks.
	Owner string
}

func (o *Options) validate() error {
	switch {
	case len(o.CheckInDirs) == 0:
		return errors.NewConfigError("no check-in directories", nil)
	case o.CentralDir == "":
		return errors.NewConfigError("no central directory", nil)
	case o.PollInterval <= 0:
		return errors.NewConfigError("poll interval must be positive", nil)
	case o.LockTimeout <= 0:
		return errors.NewConfigError("lock timeout must be positive", nil)
	case o.Owner == "":
		return errors.NewConfigError("owner must not be empty", nil)
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = DefaultMaxWorkers
	}
	if o.WatchDebounce <= 0 {
		o.WatchDebounce = DefaultWatchDebounce
	}
	return nil
}

// Enumerator yields the bodies eligible for one pass. *scanner.Scanner
// implements it.
type Enumerator interface {
	Enumerate(dirs []string, lockTimeout time.Duration) iter.Seq[scanner.Entry]
}

// PassResult summarises one pass.
type PassResult struct {
	Pass      int
	Eligible  int
	Collected int
	Conflicts int
	Failures  int
	Duration  time.Duration
}

// Collector owns the pass timer for the process.
type Collector struct {
	opts   Options
	scan   Enumerator
	clock  clock.Clock
	logger *logging.Logger
	bus    *event.Bus

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	done    chan struct{}
	watcher *watcher

	passMu sync.Mutex // passes never overlap
	passes int

	ownMu   sync.Mutex
	ownRecs map[string]time.Time // unlocked names this agent produced, by time
}

// New creates a stopped Collector. logger and bus may be nil.
func New(opts Options, scan Enumerator, clk clock.Clock, logger *logging.Logger, bus *event.Bus) (*Collector, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	if bus == nil {
		bus = event.NewBus(logger)
	}
	return &Collector{
		opts:    opts,
		scan:    scan,
		clock:   clk,
		logger:  logger.WithComponent("collector").With("owner", opts.Owner),
		bus:     bus,
		ownRecs: make(map[string]time.Time),
	}, nil
}

// State returns the lifecycle state.
func (c *Collector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Passes returns the number of passes run so far.
func (c *Collector) Passes() int {
	c.passMu.Lock()
	defer c.passMu.Unlock()
	return c.passes
}

// Start runs a first pass immediately and then one per poll interval until
// ctx is cancelled or Stop is called. Stop must be called to release the
// collector even after ctx is cancelled.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRunning {
		return ErrAlreadyRunning
	}

	wake := make(chan struct{}, 1)
	if c.opts.Watch {
		w, err := newWatcher(c.opts.CheckInDirs, c.opts.WatchDebounce, c.isOwnName, c.logger)
		if err != nil {
			return err
		}
		c.watcher = w
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state = StateRunning

	if c.watcher != nil {
		go c.watcher.run(ctx, wake)
	}
	go c.loop(ctx, wake, c.done)

	c.logger.Info("collector started",
		"checkin_dirs", c.opts.CheckInDirs,
		"central_dir", c.opts.CentralDir,
		"poll_interval", c.opts.PollInterval.String(),
		"lock_timeout", c.opts.LockTimeout.String(),
		"watch", c.opts.Watch)
	c.bus.Publish(event.NewCollectorStartedEvent(c.clock.Now(), c.opts.Owner, c.opts.CheckInDirs, c.opts.CentralDir))
	return nil
}

// Stop prevents new passes and waits for the in-flight pass to finish. It
// never interrupts a collection. Stop is idempotent.
func (c *Collector) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if done == nil {
		return
	}
	if cancel == nil {
		<-done
		return
	}
	cancel()
	<-done

	c.mu.Lock()
	if c.watcher != nil {
		if err := c.watcher.Close(); err != nil {
			c.logger.Warn("failed to close watcher", "error", err)
		}
		c.watcher = nil
	}
	c.state = StateStopped
	c.mu.Unlock()

	passes := c.Passes()
	c.logger.Info("collector stopped", "passes", passes)
	c.bus.Publish(event.NewCollectorStoppedEvent(c.clock.Now(), c.opts.Owner, passes))
}

func (c *Collector) loop(ctx context.Context, wake <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	c.RunPass()

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-wake:
			c.logger.Debug("woken by file-system notification")
		}
		if ctx.Err() != nil {
			return
		}
		c.RunPass()
	}
}

// RunPass enumerates and collects once. It is safe to call whether or not the
// collector is running; passes are serialized.
func (c *Collector) RunPass() PassResult {
	c.passMu.Lock()
	defer c.passMu.Unlock()

	c.passes++
	res := PassResult{Pass: c.passes}
	start := c.clock.Now()
	c.pruneOwnNames(start)

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(c.opts.MaxWorkers)
	for entry := range c.scan.Enumerate(c.opts.CheckInDirs, c.opts.LockTimeout) {
		res.Eligible++
		p.Go(func() {
			out := c.collect(entry)
			mu.Lock()
			defer mu.Unlock()
			switch out {
			case outcomeCollected:
				res.Collected++
			case outcomeConflict:
				res.Conflicts++
			default:
				res.Failures++
			}
		})
	}
	p.Wait()

	res.Duration = c.clock.Now().Sub(start)
	if res.Eligible > 0 {
		c.logger.Info("pass completed",
			"pass", res.Pass,
			"eligible", res.Eligible,
			"collected", res.Collected,
			"conflicts", res.Conflicts,
			"failures", res.Failures,
			"duration_ms", res.Duration.Milliseconds())
	}
	c.bus.Publish(event.NewPassCompletedEvent(c.clock.Now(), res.Pass, res.Eligible, res.Collected, res.Conflicts, res.Failures, res.Duration))
	return res
}

type outcome int

const (
	outcomeCollected outcome = iota
	outcomeConflict
	outcomeFailed
)

func (c *Collector) collect(entry scanner.Entry) outcome {
	name := entry.File.Name()
	kind := string(name.Kind)
	log := c.logger.WithDirectory(entry.Dir).WithFile(name.String())

	err := entry.Body.Collect(c.opts.Owner, c.opts.CentralDir)
	now := c.clock.Now()
	switch {
	case err == nil:
		c.recordOwnName(name.Unlocked().String(), now)
		log.Debug("collected", "kind", kind, "dest", entry.File.Dir())
		c.bus.Publish(event.NewBodyCollectedEvent(now, entry.Dir, name.String(), kind))
		return outcomeCollected

	// A CollectionError may wrap a ConflictError from a later step; only a
	// bare conflict means the Lock itself was lost.
	case errors.Is(err, errors.ErrFileConflict) && !errors.Is(err, errors.ErrCollectionFailed):
		log.Debug("lost lock race", "kind", kind, "error", err)
		c.bus.Publish(event.NewBodyConflictEvent(now, entry.Dir, name.String(), kind, err))
		return outcomeConflict

	default:
		log.Warn("collection failed",
			"kind", kind,
			"error", err,
			"severity", errors.GetSeverity(err).String(),
			"retryable", errors.IsRetryable(err))
		c.bus.Publish(event.NewBodyFailedEvent(now, entry.Dir, name.String(), kind, err))
		return outcomeFailed
	}
}

// recordOwnName remembers an unlocked name this agent just produced so the
// watcher does not treat it as a new drop.
func (c *Collector) recordOwnName(name string, at time.Time) {
	c.ownMu.Lock()
	defer c.ownMu.Unlock()
	c.ownRecs[name] = at
}

func (c *Collector) pruneOwnNames(now time.Time) {
	c.ownMu.Lock()
	defer c.ownMu.Unlock()
	for name, at := range c.ownRecs {
		if now.Sub(at) > c.opts.PollInterval {
			delete(c.ownRecs, name)
		}
	}
}

// isOwnName reports whether a notification for base should be ignored:
// suffixed names are collector traffic, and unlocked names this agent
// produced recently are its own unlocks.
func (c *Collector) isOwnName(base string) bool {
	n, err := naming.Parse(base)
	if err != nil || n.IsLocked() {
		return true
	}
	c.ownMu.Lock()
	defer c.ownMu.Unlock()
	_, ok := c.ownRecs[base]
	return ok
}
