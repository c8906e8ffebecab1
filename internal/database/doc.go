// Package database provides SQLite-based storage for harvester.
//
// This package implements the HarvestDB, which stores:
//   - Fetched page records with content and metadata
//   - Session summaries for historical comparison
//   - Dead tasks for permanent-failure auditing
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
package database
