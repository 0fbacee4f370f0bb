// Package logging provides structured logging for the claim store agent.
//
// Entries are JSON lines produced by log/slog. Child loggers carry persistent
// attributes:
//
//	log := logging.NopLogger().WithComponent("collector")
//	log.WithDirectory(dir).WithFile(name).Warn("collection failed", "error", err)
//
// With a file configured, output goes through a [RotatingWriter], which
// rotates by size and can gzip rotated files.
//
// All types in this package are safe for concurrent use.
package logging
