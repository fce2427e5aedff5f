package database

import (
	"testing"
	"testing/fstest"

	"github.com/nerrad567/gray-logic-knxip/migrations"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20260101_000000_users.up.sql":   {Data: []byte("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);")},
		"20260101_000000_users.down.sql": {Data: []byte("DROP TABLE users;")},
		"20260102_000000_teams.up.sql":   {Data: []byte("CREATE TABLE teams (id INTEGER PRIMARY KEY);")},
		"20260102_000000_teams.down.sql": {Data: []byte("DROP TABLE teams;")},
		"README.md":                      {Data: []byte("not a migration")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(testContext(t),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n)
	if err != nil {
		t.Fatalf("sqlite_master query error = %v", err)
	}
	return n == 1
}

// ─── Migrate ──────────────────────────────────────────────────────

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := testContext(t)
	fsys := testMigrations()

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "users") || !tableExists(t, db, "teams") {
		t.Fatal("migrated tables missing")
	}

	// Idempotent.
	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	applied, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied=%d pending=%d, want 2 and 0", len(applied), len(pending))
	}
	if applied[0].AppliedAt.IsZero() {
		t.Error("AppliedAt not recorded")
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	ctx := testContext(t)
	fsys := testMigrations()

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, fsys); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "teams") {
		t.Error("teams still exists after MigrateDown()")
	}
	if !tableExists(t, db, "users") {
		t.Error("users dropped by MigrateDown(), only the latest should go")
	}

	_, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "teams" {
		t.Errorf("pending = %+v, want [teams]", pending)
	}
}

func TestMigrateFailureRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := testContext(t)
	fsys := fstest.MapFS{
		"20260101_000000_ok.up.sql":  {Data: []byte("CREATE TABLE ok (id INTEGER);")},
		"20260102_000000_bad.up.sql": {Data: []byte("CREATE TABLE half (id INTEGER); NOT SQL;")},
	}

	if err := db.Migrate(ctx, fsys); err == nil {
		t.Fatal("Migrate() with bad SQL succeeded")
	}
	if !tableExists(t, db, "ok") {
		t.Error("earlier migration was not kept")
	}
	if tableExists(t, db, "half") {
		t.Error("failed migration was not rolled back")
	}
}

func TestMigrateNil(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(testContext(t), nil); err != nil {
		t.Errorf("Migrate(nil) error = %v", err)
	}
	if err := db.MigrateDown(testContext(t), nil); err != nil {
		t.Errorf("MigrateDown(nil) with nothing applied error = %v", err)
	}
}

func TestEmbeddedSchema(t *testing.T) {
	db := openTestDB(t)
	ctx := testContext(t)

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate(migrations.FS) error = %v", err)
	}
	for _, table := range []string{"knx_gateways", "knx_devices", "knx_group_addresses"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s missing", table)
		}
	}

	if err := db.MigrateDown(ctx, migrations.FS); err != nil {
		t.Fatalf("MigrateDown(migrations.FS) error = %v", err)
	}
	if tableExists(t, db, "knx_gateways") {
		t.Error("knx_gateways survived MigrateDown()")
	}
}

// ─── Filenames ────────────────────────────────────────────────────

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"20260301_120000_initial_schema.up.sql", "20260301_120000", true, true},
		{"20260301_120000_initial_schema.down.sql", "20260301_120000", false, true},
		{"20260301_120000_initial_schema.sql", "", false, false},
		{"readme.up.txt", "", false, false},
		{"single.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.name)
			if version != tt.wantVersion || isUp != tt.wantUp || ok != tt.wantOK {
				t.Errorf("parseMigrationFilename(%q) = %q, %v, %v; want %q, %v, %v",
					tt.name, version, isUp, ok, tt.wantVersion, tt.wantUp, tt.wantOK)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := map[string]string{
		"20260301_120000_initial_schema.up.sql": "initial_schema",
		"20260301_120000_x.down.sql":            "x",
		"odd.up.sql":                            "odd",
	}
	for in, want := range tests {
		if got := extractMigrationName(in); got != want {
			t.Errorf("extractMigrationName(%q) = %q, want %q", in, got, want)
		}
	}
}
