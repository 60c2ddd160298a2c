package library

import (
	"strings"
	"testing"

	"snip-go/internal/testutil"
	"snip-go/internal/tree"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		data string
		size int
		want []string
	}{
		{"fits", "abc", 8, []string{"abc"}},
		{"exact", "abcd", 4, []string{"abcd"}},
		{"uneven", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"even", "abcdefgh", 4, []string{"abcd", "efgh"}},
		{"unlimited", "abcdefgh", 0, []string{"abcdefgh"}},
		{"empty", "", 4, []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := split([]byte(tt.data), tt.size)
			var got []string
			for _, c := range chunks {
				got = append(got, string(c))
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("split(%q, %d) = %q, want %q", tt.data, tt.size, got, tt.want)
			}
		})
	}
}

func TestSplit_MultibyteJoin(t *testing.T) {
	data := []byte("héllo wörld ✓")
	var joined []byte
	for _, c := range split(data, 3) {
		joined = append(joined, c...)
	}
	if string(joined) != string(data) {
		t.Errorf("joined chunks = %q, want %q", joined, data)
	}
}

func TestHash(t *testing.T) {
	a := Hash([]byte("one"))
	if len(a) != 16 {
		t.Errorf("Hash() length = %d, want 16", len(a))
	}
	if a != Hash([]byte("one")) {
		t.Error("Hash() not deterministic")
	}
	if a == Hash([]byte("two")) {
		t.Error("Hash() collided on different input")
	}
}

func TestSaveLoad_SQLiteKV(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	kv := db.KV(128)

	svc := New(kv, WithClock(testutil.FixedClock()))
	for _, name := range []string{"brb", "addr", "sig"} {
		if _, err := svc.AddSnippet(name, tree.PlainBody("body of "+name), ""); err != nil {
			t.Fatal(err)
		}
	}
	if saved, err := svc.Save(); err != nil || !saved {
		t.Fatalf("Save() = %v, %v", saved, err)
	}
	if saved, err := svc.Save(); err != nil || saved {
		t.Errorf("Save(unchanged) = %v, %v; want false", saved, err)
	}

	saves, err := db.ListSaves(10)
	if err != nil {
		t.Fatalf("ListSaves() error = %v", err)
	}
	if len(saves) != 1 || saves[0].Chunks < 2 || saves[0].Hash == "" {
		t.Errorf("ListSaves() = %+v, want one multi-chunk save", saves)
	}

	reloaded := New(kv)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if n := len(reloaded.Snippets()); n != 3 {
		t.Errorf("reloaded %d snippets, want 3", n)
	}
}
