// Package logging assembles structured slog loggers for romlib.
//
// It owns the console and JSON handlers, level and output plumbing, the
// standard field keys (component, session_id, event_type, error_hint,
// impact), and helpers that enforce those keys on warnings. Walk progress is
// thinned through ProgressSampler and old log files are pruned by
// CleanupOldLogs.
package logging
