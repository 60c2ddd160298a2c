package database

import _ "embed"

// This file documents code generation for the database package.
//
// To regenerate schema.sql from the migration files:
//   go generate ./internal/database

//go:generate sh -c "cd ../.. && go run internal/database/tools/generate_schema.go"

// Schema is the current schema, flattened from the migrations. Tests apply it
// directly to in-memory databases instead of running the migrator.
//
//go:embed schema.sql
var Schema string
