package database

import (
	"strings"
	"testing"

	"snip-go/internal/database/migrations"
)

func TestDumpSchema(t *testing.T) {
	db, err := OpenConnection(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := migrations.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	got, err := DumpSchema(db)
	if err != nil {
		t.Fatalf("DumpSchema() error = %v", err)
	}
	if !strings.HasPrefix(got, schemaHeader) {
		t.Error("DumpSchema() is missing the generated-file header")
	}
	if strings.Contains(got, "schema_migrations") {
		t.Error("DumpSchema() includes the migrator's table")
	}
	for _, want := range []string{"CREATE TABLE kv", "CREATE TABLE operations", "CREATE TABLE saves", "idx_saves_hash", "idx_saves_saved_at"} {
		if !strings.Contains(got, want) {
			t.Errorf("DumpSchema() missing %q", want)
		}
	}
	if strings.Index(got, "CREATE INDEX") < strings.LastIndex(got, "CREATE TABLE") {
		t.Error("DumpSchema() lists an index before a table")
	}

	// The dump must be applicable to a fresh database as-is.
	fresh, err := OpenConnection(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer fresh.Close()
	if _, err := fresh.Exec(got); err != nil {
		t.Fatalf("applying dumped schema: %v", err)
	}
}

func TestSchema_MatchesMigrations(t *testing.T) {
	names := func(t *testing.T, apply func(*SQLiteDatabase) error) string {
		t.Helper()
		db, err := NewSQLiteDatabase(":memory:", fixedClock{})
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		if err := apply(db); err != nil {
			t.Fatal(err)
		}
		rows, err := db.db.Query(`SELECT type || ':' || name FROM sqlite_master
			WHERE name NOT LIKE 'sqlite_%' AND tbl_name != 'schema_migrations' ORDER BY 1`)
		if err != nil {
			t.Fatal(err)
		}
		defer rows.Close()
		var out []string
		for rows.Next() {
			var s string
			rows.Scan(&s)
			out = append(out, s)
		}
		return strings.Join(out, ",")
	}

	migrated := names(t, func(db *SQLiteDatabase) error { return migrations.MigrateUp(db.db) })
	embedded := names(t, func(db *SQLiteDatabase) error { _, err := db.db.Exec(Schema); return err })
	if migrated != embedded {
		t.Errorf("schema.sql objects = %s, migrations create %s; run go generate", embedded, migrated)
	}
}
