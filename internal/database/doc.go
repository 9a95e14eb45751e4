// Package database provides SQLite-based storage for queuelab run history.
//
// The RunDB stores:
//   - Scenario run reports as JSON, with their status and start time
//   - The artifacts each run wrote, indexed by path and digest
//
// SQLite is used through modernc.org/sqlite, a CGO-free driver, so the
// history is a single file in the user's data directory and the binary
// cross-compiles without a C toolchain. WAL mode lets `history` read while
// a `verify --watch` session keeps writing.
package database
