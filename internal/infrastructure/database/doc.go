// Package database manages the SQLite connection backing the event journal,
// including embedded schema migrations.
package database
