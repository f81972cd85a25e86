// Package database provides the SQLite connection behind the money
// transaction index.
//
// The index is a queryable copy of money.csv. The CSV file remains the
// audit record; the database exists so administrators can page and filter
// transactions without parsing the file.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
