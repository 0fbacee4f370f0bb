package cmd

import (
	"github.com/spf13/afero"

	"github.com/claimstore/agent/internal/clock"
	"github.com/claimstore/agent/internal/collector"
	"github.com/claimstore/agent/internal/config"
	"github.com/claimstore/agent/internal/event"
	"github.com/claimstore/agent/internal/logging"
	"github.com/claimstore/agent/internal/scanner"
	"github.com/claimstore/agent/internal/storefs"
)

// agent bundles the components built from the loaded configuration.
type agent struct {
	cfg     *config.Config
	fs      afero.Fs
	clock   clock.Clock
	logger  *logging.Logger
	bus     *event.Bus
	scanner *scanner.Scanner
}

// newAgent loads and validates the configuration and wires the components.
// Configuration problems are returned as errors.ConfigError.
func newAgent() (*agent, error) {
	if configReadErr != nil {
		return nil, configReadErr
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return newAgentFrom(cfg, storefs.NewOsFs(), clock.Real{})
}

func newAgentFrom(cfg *config.Config, fsys afero.Fs, clk clock.Clock) (*agent, error) {
	logger, err := logging.New(logging.Options{
		Level: cfg.Logging.Level,
		File:  cfg.Logging.File,
		Rotation: logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		},
	})
	if err != nil {
		return nil, err
	}

	scan, err := scanner.New(fsys, clk, scanner.Options{
		MinFileAge: cfg.Collector.MinFileAge(),
		Exclude:    cfg.Collector.Exclude,
		Logger:     logger,
	})
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	return &agent{
		cfg:     cfg,
		fs:      fsys,
		clock:   clk,
		logger:  logger,
		bus:     event.NewBus(logger),
		scanner: scan,
	}, nil
}

func (a *agent) newCollector() (*collector.Collector, error) {
	col := a.cfg.Collector
	return collector.New(collector.Options{
		CheckInDirs:  col.CheckInDirs,
		CentralDir:   col.CentralDir,
		PollInterval: col.PollInterval(),
		LockTimeout:  col.LockTimeout(),
		MaxWorkers:   col.MaxWorkers,
		Watch:        col.Watch,
		Owner:        a.cfg.Agent.Owner(),
	}, a.scanner, a.clock, a.logger, a.bus)
}

func (a *agent) Close() error {
	return a.logger.Close()
}
