// Package journal persists session events to SQLite: process spawns and
// exits, stream connects and disconnects, and task outcomes.
package journal
