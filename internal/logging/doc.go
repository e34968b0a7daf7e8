// Package logging builds the slog loggers used across savesync. It provides
// a console handler for interactive use, a JSON handler for machine
// consumption, attribute helpers, and the shared field-name constants that
// keep log output greppable across components.
package logging
