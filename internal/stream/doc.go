// Package stream maintains the resilient WebSocket connection to the
// backend's event channel.
//
// The client owns a single logical connection. Connects are idempotent,
// disconnects trigger capped exponential-backoff reconnects, and every
// complete message is parsed and dispatched as a formatted output line.
// A manual close suppresses reconnection until the next explicit connect.
package stream
