// Package store provides the SQLite storage engine behind live queries.
//
// The store executes compiled selects, applies writes, and reports which
// tables each committed transaction touched. Change detection is table
// granular: SQLite update hooks mark tables dirty, the commit hook
// publishes them to subscribers, and the rollback hook discards them.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait up to 5 seconds on lock contention
//   - foreign_keys=ON: Enforce referential integrity
//   - Single connection: hooks and in-memory databases stay consistent
//
// # SQL Functions
//
// Every connection registers regexp(pattern, value) so that
// "value REGEXP pattern" evaluates Go RE2 syntax. NULL values never match.
package store
