package model

import "time"

// Operation is one recorded invocation of a mutating command (add, import,
// sort, ...). Operations are logged to the database so history can show what
// changed the library and whether it finished.
type Operation struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt *time.Time // nil while running or if the process died
	Operation  string     // command name, e.g. "add", "import"
	Parameters string     // free-form arguments
	Status     string     // "running", "success" or "error"
}

// Save records one persisted write of the snippet tree to the store.
type Save struct {
	ID      int64
	SavedAt time.Time
	Chunks  int    // number of chunk keys written
	Size    int    // total encoded bytes
	Hash    string // xxh3 of the encoded tree, hex
}
