// Package logging provides structured logging for Sidekick.
//
// It wraps log/slog with:
//   - Config-driven level, format, and output selection
//   - A colourised text handler (tint) for developer consoles
//   - A JSON handler for machine consumption
//   - Default service/version fields on every record
//
// Components never import this package directly for their dependencies;
// they accept a narrow Logger interface defined where it is consumed, and
// *logging.Logger satisfies those interfaces.
package logging
