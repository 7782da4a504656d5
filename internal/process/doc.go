// Package process manages the lifecycle of a single subprocess: spawning
// into its own process group, line-by-line output capture, exit observation,
// and graceful SIGTERM-then-SIGKILL shutdown.
package process
