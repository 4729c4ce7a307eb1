/*
Package log provides structured logging for Clawster using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level for production debugging.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages (default production level)
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithNodeID: Add node ID context
  - WithPeer: Add gossip peer context
  - WithCapability: Add capability context for provenance logs

# Usage

Initializing the Logger:

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
	})

Simple Logging:

	log.Info("agent started")
	log.Warn("peer heartbeat missed")
	log.Fatal("cannot start without store") // Exits process

Structured Logging:

	log.Logger.Info().
		Str("node_id", "node-abc").
		Int("fanout", 3).
		Msg("gossip round dispatched")

	log.Logger.Error().
		Err(err).
		Str("peer", "node-def").
		Msg("gossip dispatch failed")

Component Loggers:

	electionLog := log.WithComponent("election")
	electionLog.Info().Str("holder", holder).Msg("lease observed")

# Log Output Examples

JSON Format (Production):

	{"level":"info","component":"gossip","time":"2026-02-10T10:30:00Z","message":"round dispatched"}
	{"level":"error","component":"election","error":"context deadline exceeded","time":"2026-02-10T10:30:02Z","message":"renew failed"}

Console Format (Development):

	10:30:00 INF round dispatched component=gossip
	10:30:02 ERR renew failed component=election error="context deadline exceeded"

# Integration Points

This package integrates with:

  - pkg/agent: Logs loop lifecycle and shutdown
  - pkg/gossip: Logs rounds, dispatch outcomes, rejections
  - pkg/election: Logs lease acquisition, renewal, loss
  - pkg/registry: Logs heartbeat cycles and retries
  - pkg/failover: Logs failure detection and migration

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Log errors with .Err() rather than string formatting
  - Include context (node ID, peer, capability)

Don't:
  - Log secrets (store passwords come from the environment; never echo them)
  - Use Debug level in production
  - Log in tight loops
*/
package log
