// Package logging provides structured logging for FleetSim Core.
//
// It wraps the standard library's log/slog with configuration-driven
// format/level selection and default service fields. Components receive a
// *Logger (or a narrower interface they define) by injection; nothing logs
// through a global.
package logging
