package library

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"snip-go/internal/testutil"
	"snip-go/internal/tree"
)

func newTestService(t *testing.T, maxItemSize int, opts ...Option) (*Service, *testutil.TestStore) {
	t.Helper()
	st := testutil.NewTestStore(maxItemSize)
	opts = append([]Option{WithClock(testutil.FixedClock())}, opts...)
	return New(st, opts...), st
}

func TestLoad_EmptyStore(t *testing.T) {
	svc, _ := newTestService(t, 1024)
	if err := svc.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if f, s := svc.Count(); f != 0 || s != 0 {
		t.Errorf("Count() = %d, %d; want empty tree", f, s)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	svc, st := newTestService(t, 64)
	if _, err := svc.AddFolder("work", ""); err != nil {
		t.Fatalf("AddFolder() error = %v", err)
	}
	if _, err := svc.AddSnippet("sig", tree.PlainBody(strings.Repeat("Best regards, ", 10)), "work"); err != nil {
		t.Fatalf("AddSnippet() error = %v", err)
	}
	if _, err := svc.AddSnippet("brb", tree.PlainBody("be right back"), ""); err != nil {
		t.Fatalf("AddSnippet() error = %v", err)
	}

	wrote, err := svc.Save()
	if err != nil || !wrote {
		t.Fatalf("Save() = %v, %v; want true, nil", wrote, err)
	}
	if st.Sets(chunkKey(1, 1)) == 0 {
		t.Error("tree larger than the ceiling was not chunked")
	}
	saves := st.Saves()
	if len(saves) != 1 || saves[0].Chunks < 2 {
		t.Errorf("Saves() = %+v", saves)
	}

	other := New(st, WithClock(testutil.FixedClock()))
	if err := other.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	a, _ := svc.Export(tree.FormatObject)
	b, _ := other.Export(tree.FormatObject)
	if string(a) != string(b) {
		t.Errorf("loaded tree differs:\n%s\n%s", a, b)
	}
	if sn := other.Snippet("SIG"); sn == nil {
		t.Error("Snippet(SIG) = nil after load")
	}
}

func TestSave_SkipsUnchanged(t *testing.T) {
	svc, st := newTestService(t, 1024)
	svc.AddSnippet("brb", tree.PlainBody("be right back"), "")

	if wrote, _ := svc.Save(); !wrote {
		t.Fatal("first Save() wrote nothing")
	}
	before := st.TotalSets()
	if wrote, err := svc.Save(); wrote || err != nil {
		t.Errorf("second Save() = %v, %v; want false, nil", wrote, err)
	}
	if st.TotalSets() != before {
		t.Error("unchanged save touched the store")
	}

	svc.Edit("brb", tree.PlainBody("be right back!"))
	if wrote, _ := svc.Save(); !wrote {
		t.Error("Save() after Edit() wrote nothing")
	}
}

func TestSave_RemovesStaleChunks(t *testing.T) {
	svc, st := newTestService(t, 64)
	svc.AddSnippet("long", tree.PlainBody(strings.Repeat("x", 300)), "")
	if _, err := svc.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, ok, _ := st.Get(chunkKey(1, 4)); !ok {
		t.Fatal("expected at least five chunks")
	}

	svc.Edit("long", tree.PlainBody("x"))
	if _, err := svc.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	for _, key := range st.Keys() {
		if key != MetaKey && !strings.HasPrefix(key, ChunkPrefix+"2_") {
			t.Errorf("stale key %s left behind", key)
		}
	}

	fresh := New(st)
	if err := fresh.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sn := fresh.Snippet("long"); sn == nil || sn.Body.PlainText() != "x" {
		t.Errorf("Snippet(long) = %v", sn)
	}
}

func TestSave_FailedChunkKeepsPreviousTree(t *testing.T) {
	svc, st := newTestService(t, 64)
	svc.AddSnippet("brb", tree.PlainBody("be right back"), "")
	if _, err := svc.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	committed := st.Keys()

	svc.AddSnippet("long", tree.PlainBody(strings.Repeat("y", 200)), "")
	quota := errors.New("quota")
	st.FailSet(chunkKey(2, 3), quota)
	if _, err := svc.Save(); !errors.Is(err, quota) {
		t.Fatalf("Save() error = %v, want quota", err)
	}
	if got := st.Keys(); strings.Join(got, ",") != strings.Join(committed, ",") {
		t.Errorf("keys after failed save = %v, want %v", got, committed)
	}

	fresh := New(st)
	if err := fresh.Load(); err != nil {
		t.Fatalf("Load() after failed save error = %v", err)
	}
	if fresh.Snippet("brb") == nil || fresh.Snippet("long") != nil {
		t.Errorf("Load() after failed save = %v, want the previous tree", fresh.Snippets())
	}

	st.FailSet(chunkKey(2, 3), nil)
	if wrote, err := svc.Save(); err != nil || !wrote {
		t.Fatalf("retried Save() = %v, %v", wrote, err)
	}
	if err := fresh.Load(); err != nil || fresh.Snippet("long") == nil {
		t.Errorf("Load() after retry = %v, long = %v", err, fresh.Snippet("long"))
	}
}

func TestLoad_ChunksWithoutGeneration(t *testing.T) {
	data, err := tree.Encode(tree.NewFolder("", 0), tree.FormatArray)
	if err != nil {
		t.Fatal(err)
	}
	st := testutil.NewTestStore(0)
	st.Set(MetaKey, []byte(fmt.Sprintf(`{"v":1,"f":"array","n":1,"s":%d,"h":%q}`, len(data), Hash(data))))
	st.Set("snippets_0", data)

	svc := New(st, WithClock(testutil.FixedClock()))
	if err := svc.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	svc.AddSnippet("brb", tree.PlainBody("be right back"), "")
	if _, err := svc.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, ok, _ := st.Get("snippets_0"); ok {
		t.Error("chunk written without a generation was not removed")
	}
	if _, ok, _ := st.Get(chunkKey(1, 0)); !ok {
		t.Error("Save() did not write generation 1")
	}
}

func TestLoad_LegacyKey(t *testing.T) {
	st := testutil.NewTestStore(4096)
	st.Set(LegacyKey, []byte(`["Snippets",1,["work",2,{"name":"sig","body":"-A","timestamp":3}]]`))

	svc := New(st)
	if err := svc.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if svc.Snippet("sig") == nil {
		t.Fatal("legacy tree not loaded")
	}

	if wrote, err := svc.Save(); !wrote || err != nil {
		t.Fatalf("Save() after legacy load = %v, %v; want migration write", wrote, err)
	}
	if _, ok, _ := st.Get(LegacyKey); ok {
		t.Error("legacy key not removed after migration")
	}
	if _, ok, _ := st.Get(MetaKey); !ok {
		t.Error("meta key not written")
	}
}

func TestLoad_Corrupt(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
	}{
		{"bad meta", map[string]string{MetaKey: "{"}},
		{"missing chunk", map[string]string{MetaKey: `{"v":1,"n":2,"s":4}`, "snippets_0": "[\"Sn"}},
		{"hash mismatch", map[string]string{MetaKey: `{"v":1,"n":1,"s":2,"h":"00"}`, "snippets_0": "[]"}},
		{"future version", map[string]string{MetaKey: `{"v":9,"n":0}`}},
		{"undecodable tree", map[string]string{LegacyKey: "not json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := testutil.NewTestStore(0)
			for k, v := range tt.values {
				st.Set(k, []byte(v))
			}
			if err := New(st).Load(); err == nil {
				t.Error("Load() error = nil, want error")
			}
		})
	}
}

func TestSave_StoreFailure(t *testing.T) {
	svc, st := newTestService(t, 1024)
	svc.AddSnippet("brb", tree.PlainBody("be right back"), "")

	boom := errors.New("quota exceeded")
	st.FailSet(MetaKey, boom)
	if _, err := svc.Save(); !errors.Is(err, boom) {
		t.Fatalf("Save() error = %v, want %v", err, boom)
	}

	st.FailSet(MetaKey, nil)
	if wrote, err := svc.Save(); !wrote || err != nil {
		t.Errorf("Save() retry = %v, %v; want true, nil", wrote, err)
	}
}

func TestCRUD(t *testing.T) {
	svc, _ := newTestService(t, 0)

	f, err := svc.AddFolder("work", "")
	if err != nil {
		t.Fatalf("AddFolder() error = %v", err)
	}
	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC).UnixMilli()
	if f.Timestamp() != want {
		t.Errorf("Timestamp() = %d, want %d", f.Timestamp(), want)
	}

	if _, err := svc.AddFolder("inner", "work"); err != nil {
		t.Fatalf("AddFolder(inner) error = %v", err)
	}
	if _, err := svc.AddSnippet("sig", tree.PlainBody("-A"), "inner"); err != nil {
		t.Fatalf("AddSnippet() error = %v", err)
	}

	var verr *tree.ValidationError
	if _, err := svc.AddSnippet("SIG", tree.PlainBody("dup"), ""); !errors.As(err, &verr) {
		t.Errorf("AddSnippet(duplicate) error = %v, want ValidationError", err)
	}
	if _, err := svc.AddSnippet("x", tree.PlainBody(""), "nowhere"); !errors.Is(err, tree.ErrNotFound) {
		t.Errorf("AddSnippet(missing folder) error = %v, want ErrNotFound", err)
	}

	path, err := svc.Path(svc.Snippet("sig"))
	if err != nil || strings.Join(path, "/") != "Snippets/work/inner" {
		t.Errorf("Path() = %v, %v", path, err)
	}

	var nest *tree.CannotNestError
	if err := svc.Move("work", tree.KindFolder, "inner"); !errors.As(err, &nest) {
		t.Errorf("Move(into descendant) error = %v, want CannotNestError", err)
	}
	if err := svc.Move("sig", tree.KindSnippet, ""); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if path, _ := svc.Path(svc.Snippet("sig")); len(path) != 1 {
		t.Errorf("Path() after move = %v", path)
	}

	if err := svc.Rename("sig", "signature", tree.KindSnippet); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if svc.Snippet("sig") != nil || svc.Snippet("signature") == nil {
		t.Error("Rename() did not update the index")
	}

	if err := svc.Remove("work", tree.KindFolder); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := svc.Remove("work", tree.KindFolder); !errors.Is(err, tree.ErrNotFound) {
		t.Errorf("Remove(again) error = %v, want ErrNotFound", err)
	}
	if f, s := svc.Count(); f != 0 || s != 1 {
		t.Errorf("Count() = %d, %d; want 0, 1", f, s)
	}
}

func TestSortAndSearch(t *testing.T) {
	clock := testutil.FixedClock().Ticking(time.Second)
	svc := New(testutil.NewTestStore(0), WithClock(clock))
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		svc.AddSnippet(name, tree.PlainBody("body of "+name), "")
	}

	if err := svc.Sort("", tree.SortOptions{Mode: tree.SortAlphabetic}); err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	var names []string
	for _, sn := range svc.Snippets() {
		names = append(names, sn.Name())
	}
	if strings.Join(names, ",") != "alpha,bravo,charlie" {
		t.Errorf("Snippets() after sort = %v", names)
	}

	if err := svc.Sort("", tree.SortOptions{Mode: tree.SortTimestamp, Descending: true}); err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	if first := svc.Snippets()[0].Name(); first != "bravo" {
		t.Errorf("newest first = %q, want bravo", first)
	}

	hits := svc.Search("alpha")
	if len(hits) != 1 || hits[0].Name() != "alpha" {
		t.Errorf("Search(alpha) = %v", hits)
	}
	if hits := svc.Search("body"); len(hits) != 3 {
		t.Errorf("Search(body) returned %d hits, want 3", len(hits))
	}
}

func TestImportExport(t *testing.T) {
	svc, _ := newTestService(t, 0)
	svc.AddSnippet("brb", tree.PlainBody("be right back"), "")

	data := []byte(`{"type":"folder","name":"Snippets","timestamp":1,"list":[
		{"type":"folder","name":"home","timestamp":2,"list":[]},
		{"type":"snip","name":"BRB","timestamp":3,"body":"bathroom break"}]}`)

	res, err := svc.Import(data, ImportMerge)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Format != tree.FormatObject || res.Folders != 1 || res.Snippets != 1 {
		t.Errorf("Import() = %+v", res)
	}
	if len(res.Renamed) != 1 || res.Renamed[0].To != "BRB (1)" {
		t.Errorf("Renamed = %+v", res.Renamed)
	}
	if sn := svc.Snippet("brb"); sn.Body.PlainText() != "be right back" {
		t.Error("merge replaced an existing snippet")
	}

	if _, err := svc.Import([]byte("garbage"), ImportReplace); err == nil {
		t.Error("Import(garbage) error = nil")
	}
	if f, s := svc.Count(); f != 1 || s != 2 {
		t.Errorf("failed import changed the tree: %d folders, %d snippets", f, s)
	}

	if _, err := svc.Import([]byte(`["Snippets",5,{"name":"only","body":"x","timestamp":6}]`), ImportReplace); err != nil {
		t.Fatalf("Import(replace) error = %v", err)
	}
	out, err := svc.Export(tree.FormatArray)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if want := `["Snippets",5,{"name":"only","body":"x","timestamp":6}]`; string(out) != want {
		t.Errorf("Export() = %s, want %s", out, want)
	}
}

func TestUpdate_RecoversOnce(t *testing.T) {
	svc, _ := newTestService(t, 0)
	svc.AddSnippet("a", tree.PlainBody("x"), "")

	calls := 0
	err := svc.update(func(t *tree.Tree) error {
		calls++
		if calls == 1 {
			return tree.ErrDataInconsistent
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("update() = %v after %d calls; want nil after 2", err, calls)
	}

	calls = 0
	err = svc.update(func(t *tree.Tree) error {
		calls++
		return tree.ErrDataInconsistent
	})
	if !errors.Is(err, tree.ErrDataInconsistent) || calls != 2 {
		t.Errorf("update() = %v after %d calls; want ErrDataInconsistent after 2", err, calls)
	}
}
