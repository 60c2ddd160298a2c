package library

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/zeebo/xxh3"

	"snip-go/internal/snip"
	"snip-go/internal/tree"
)

// Store keys. Each save writes its chunks under a fresh generation,
// snippets_<gen>_0..snippets_<gen>_N-1, and commits them by writing the meta
// record last. Meta records without a generation refer to snippets_0..N-1.
// LegacyKey holds whole trees written before chunking.
const (
	MetaKey     = "snippets_meta"
	ChunkPrefix = "snippets_"
	LegacyKey   = "snippets"

	metaVersion = 1
)

// meta describes the chunk set currently in the store. Keys are short so
// the record fits small per-item ceilings.
type meta struct {
	Version int         `json:"v"`
	Format  tree.Format `json:"f"`
	Gen     int         `json:"g,omitempty"`
	Chunks  int         `json:"n"`
	Size    int         `json:"s"`
	Hash    string      `json:"h"`
}

func chunkKey(gen, i int) string {
	if gen == 0 {
		return ChunkPrefix + strconv.Itoa(i)
	}
	return ChunkPrefix + strconv.Itoa(gen) + "_" + strconv.Itoa(i)
}

// Hash returns the hex xxh3 digest used to detect unchanged saves.
func Hash(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

// split cuts data into pieces of at most size bytes. Chunk boundaries may
// fall inside a multi-byte rune; chunks are joined before decoding.
func split(data []byte, size int) [][]byte {
	if size <= 0 || len(data) <= size {
		return [][]byte{data}
	}
	var out [][]byte
	for len(data) > size {
		out = append(out, data[:size])
		data = data[size:]
	}
	if len(data) > 0 {
		out = append(out, data)
	}
	return out
}

// readTree loads the encoded tree from store. ok is false when the store
// holds nothing yet.
func readTree(store snip.Store) (data []byte, m meta, ok bool, err error) {
	raw, found, err := store.Get(MetaKey)
	if err != nil {
		return nil, meta{}, false, fmt.Errorf("reading %s: %w", MetaKey, err)
	}
	if !found {
		legacy, found, err := store.Get(LegacyKey)
		if err != nil {
			return nil, meta{}, false, fmt.Errorf("reading %s: %w", LegacyKey, err)
		}
		if !found {
			return nil, meta{}, false, nil
		}
		return legacy, meta{}, true, nil
	}

	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, meta{}, false, fmt.Errorf("decoding %s: %w", MetaKey, err)
	}
	if m.Version > metaVersion {
		return nil, meta{}, false, fmt.Errorf("%s version %d is newer than supported %d", MetaKey, m.Version, metaVersion)
	}

	data = make([]byte, 0, m.Size)
	for i := 0; i < m.Chunks; i++ {
		key := chunkKey(m.Gen, i)
		chunk, found, err := store.Get(key)
		if err != nil {
			return nil, meta{}, false, fmt.Errorf("reading %s: %w", key, err)
		}
		if !found {
			return nil, meta{}, false, fmt.Errorf("%w: chunk %s missing", tree.ErrDataInconsistent, key)
		}
		data = append(data, chunk...)
	}
	if m.Hash != "" && Hash(data) != m.Hash {
		return nil, meta{}, false, fmt.Errorf("%w: chunk hash mismatch", tree.ErrDataInconsistent)
	}
	return data, m, true, nil
}

// writeTree stores data as a new generation of chunks under the store's
// ceiling and then commits it by writing the meta record. Until the meta
// record lands, prev's chunks stay untouched, so a failed save leaves the
// previous tree loadable. After the commit prev's chunks and the legacy key
// are removed. prev is the meta of the last committed save, zero if none.
func writeTree(store snip.Store, data []byte, format tree.Format, prev meta) (meta, error) {
	m := meta{Version: metaVersion, Format: format, Gen: prev.Gen + 1, Size: len(data), Hash: Hash(data)}
	chunks := split(data, store.MaxItemSize())
	m.Chunks = len(chunks)

	for i, c := range chunks {
		if err := store.Set(chunkKey(m.Gen, i), c); err != nil {
			discard(store, m.Gen, i)
			return meta{}, fmt.Errorf("writing %s: %w", chunkKey(m.Gen, i), err)
		}
	}

	raw, err := json.Marshal(m)
	if err != nil {
		discard(store, m.Gen, m.Chunks)
		return meta{}, fmt.Errorf("encoding %s: %w", MetaKey, err)
	}
	if err := store.Set(MetaKey, raw); err != nil {
		discard(store, m.Gen, m.Chunks)
		return meta{}, fmt.Errorf("writing %s: %w", MetaKey, err)
	}

	for i := 0; i < prev.Chunks; i++ {
		if err := store.Remove(chunkKey(prev.Gen, i)); err != nil {
			return m, fmt.Errorf("removing stale %s: %w", chunkKey(prev.Gen, i), err)
		}
	}
	if err := store.Remove(LegacyKey); err != nil {
		return m, fmt.Errorf("removing %s: %w", LegacyKey, err)
	}

	if r, ok := store.(snip.SaveRecorder); ok {
		if err := r.RecordSave(m.Chunks, m.Size, m.Hash); err != nil {
			return m, fmt.Errorf("recording save: %w", err)
		}
	}
	return m, nil
}

// discard removes the first n chunks of an uncommitted generation. Errors
// are ignored; the next save of the same generation overwrites them.
func discard(store snip.Store, gen, n int) {
	for i := 0; i < n; i++ {
		_ = store.Remove(chunkKey(gen, i))
	}
}
