// Package database opens the SQLite store used to remember what the
// client has seen: gateways from discovery, devices by individual
// address and group addresses with their last value.
//
// Schema changes are plain SQL files named
// YYYYMMDD_HHMMSS_description.up.sql (with an optional .down.sql). Each
// runs in its own transaction and is recorded in schema_migrations.
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
