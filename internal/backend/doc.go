// Package backend supervises the companion forge server: it decides under
// a single mutex whether a process needs to be spawned, probes for
// externally-managed instances before spawning, forwards captured process
// output, and stops on shutdown only what it started itself.
package backend
