// Package settings persists the broker connection settings between runs.
//
// Settings are plain string key/value pairs. The session manager stores the
// broker host, username and password under the keys defined here.
//
// Two implementations are provided:
//   - SQLiteStore: backed by the settings table created by the migrations package
//   - MemoryStore: in-process map, used by tests and tooling
//
// Security Considerations:
//   - Values are stored unencrypted, including the broker password.
//     Restrict access to the database file (the database package sets 0600).
package settings
