// Package database provides the SQLite connection behind the device
// lifecycle history.
//
// This package manages:
//   - Connection setup with WAL mode and a busy timeout
//   - Embedded, versioned schema migrations (up and down files)
//   - Health checks and lifecycle management
//
// The store is optional. When database.enabled is false Open returns
// ErrDisabled and the bridge runs with an in-memory registry only.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files live in the top-level migrations package and are named
// YYYYMMDD_HHMMSS_description.up.sql / .down.sql. Migrations are
// additive-only: new columns must be NULLABLE or carry a DEFAULT.
package database
