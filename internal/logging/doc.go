// Package logging provides rotating, structured file logging for gkgd built
// on log/slog. Records are written as JSON to <data-home>/logs/gkgd.log and,
// when Config.WriteToStderr is set (the default), mirrored to stderr; there
// is no TTY detection.
package logging
