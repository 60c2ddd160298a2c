package tree

import "testing"

func TestMerge(t *testing.T) {
	tr := New(NewFolder(RootName, 1,
		NewFolder("work", 2),
		NewSnippet("brb", PlainBody("be right back"), 3),
	))
	src := NewFolder(RootName, 10,
		NewFolder("Work", 11, NewSnippet("sig", PlainBody("-A"), 12)),
		NewFolder("home", 13),
		NewSnippet("BRB", PlainBody("bathroom break"), 14),
		NewSnippet("ty", PlainBody("thank you"), 15),
	)

	renamed, err := tr.Merge(src)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	want := []Renamed{
		{KindFolder, "Work", "Work (1)"},
		{KindSnippet, "BRB", "BRB (1)"},
	}
	if len(renamed) != len(want) {
		t.Fatalf("Merge() renamed = %+v, want %+v", renamed, want)
	}
	for i := range want {
		if renamed[i] != want[i] {
			t.Errorf("renamed[%d] = %+v, want %+v", i, renamed[i], want[i])
		}
	}

	var names []string
	for _, c := range tr.Root().Children() {
		names = append(names, c.Name())
	}
	order := []string{"work", "Work (1)", "home", "brb", "BRB (1)", "ty"}
	if len(names) != len(order) {
		t.Fatalf("root children = %v, want %v", names, order)
	}
	for i := range order {
		if names[i] != order[i] {
			t.Errorf("root children = %v, want %v", names, order)
			break
		}
	}

	if s := tr.Snippet("brb (1)"); s == nil || s.Body.PlainText() != "bathroom break" {
		t.Errorf("Snippet(brb (1)) = %v", s)
	}
	if tr.Snippet("sig") == nil {
		t.Error("nested snippet not indexed after merge")
	}
	if src.Len() != 0 {
		t.Errorf("source still has %d children", src.Len())
	}
	if err := tr.Verify(); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestMerge_RejectsAttachedSource(t *testing.T) {
	sub := NewFolder("sub", 2)
	tr := New(NewFolder(RootName, 1, sub))
	if _, err := tr.Merge(sub); err == nil {
		t.Error("Merge() of an attached folder should fail")
	}
	if _, err := tr.Merge(tr.Root()); err == nil {
		t.Error("Merge() of the root should fail")
	}
}

func TestMerge_RespectsNameLimit(t *testing.T) {
	tr := New(NewFolder(RootName, 1, NewSnippet("abcdefgh", PlainBody("x"), 2)), WithNameMaxLength(8))
	src := NewFolder(RootName, 10,
		NewSnippet("ABCDEFGH", PlainBody("clash"), 11),
		NewSnippet("abcdefghijkl", PlainBody("long"), 12),
	)

	renamed, err := tr.Merge(src)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	want := []Renamed{
		{KindSnippet, "ABCDEFGH", "ABCD (1)"},
		{KindSnippet, "abcdefghijkl", "abcd (2)"},
	}
	if len(renamed) != len(want) {
		t.Fatalf("Merge() renamed = %+v, want %+v", renamed, want)
	}
	for i := range want {
		if renamed[i] != want[i] {
			t.Errorf("renamed[%d] = %+v, want %+v", i, renamed[i], want[i])
		}
		if msg := tr.CheckName(want[i].To, KindSnippet, tr.Snippet(want[i].To)); msg != "" {
			t.Errorf("CheckName(%q) = %q", want[i].To, msg)
		}
	}
}
