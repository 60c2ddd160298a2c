// Command generate_schema flattens the migrations into
// internal/database/schema.sql. Run it from the module root.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"snip-go/internal/database"
	"snip-go/internal/database/migrations"
)

func main() {
	if err := run(filepath.Join("internal", "database", "schema.sql")); err != nil {
		fmt.Fprintf(os.Stderr, "generate_schema: %v\n", err)
		os.Exit(1)
	}
}

func run(out string) error {
	db, err := database.OpenConnection(":memory:")
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.MigrateUp(db); err != nil {
		return fmt.Errorf("migrating: %w", err)
	}
	schema, err := database.DumpSchema(db)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, []byte(schema), 0o644); err != nil {
		return err
	}
	fmt.Printf("generated %s from migrations\n", out)
	return nil
}
