// Package database provides SQLite database connectivity for chimed.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations registered from an embedded filesystem
//   - Connection pool and lifecycle management
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//   - Broker credentials are stored in plain text (see settings package)
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.{up,down}.sql and are
// applied in version order, each in its own transaction.
package database
