// Package database provides SQLite persistence for the bridge.
//
// It wraps database/sql with the mattn/go-sqlite3 driver, configured for
// a single-writer embedded deployment: WAL journalling, busy timeout,
// foreign keys enforced, one pooled connection.
//
// Schema migrations are compiled into the binary and applied in version
// order by Migrate, each in its own transaction.
//
// # Usage
//
//	db, err := database.Open(database.Config{Path: "./data/bridge.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
