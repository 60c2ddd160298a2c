package placeholder

import (
	"testing"

	"snip-go/internal/surface"
)

func selected(t *testing.T, f interface {
	Selection() (int, int)
	TextRange(int, int) string
}) string {
	t.Helper()
	s, e := f.Selection()
	return f.TextRange(s, e)
}

func TestScan(t *testing.T) {
	got := Scan("Dear %name%, re: %complaint% 100% % x%", 10)
	if len(got) != 2 {
		t.Fatalf("Scan() found %d tokens, want 2: %+v", len(got), got)
	}
	if got[0] != (Token{Text: "%name%", Start: 15, End: 21}) {
		t.Errorf("Scan()[0] = %+v", got[0])
	}
	if got[1].Text != "%complaint%" || got[1].Start != 27 {
		t.Errorf("Scan()[1] = %+v", got[1])
	}
	if n := len(Scan("é %x%", 0)); n != 1 || Scan("é %x%", 0)[0].Start != 2 {
		t.Errorf("Scan() uses rune offsets, got %+v", Scan("é %x%", 0))
	}
}

func TestScenarioC_TwoPlaceholders(t *testing.T) {
	f := surface.NewField("")
	end, _ := f.ReplaceRange(0, 0, "%name%, %complaint%")

	e := NewEngine(Cycle)
	if n := e.Arm(f, 0, end); n != 2 {
		t.Fatalf("Arm() = %d, want 2", n)
	}
	if got := e.Tokens(); got[0] != "%name%" || got[1] != "%complaint%" {
		t.Errorf("Tokens() = %v", got)
	}
	for _, want := range []string{"%name%", "%complaint%"} {
		ok, err := e.Next()
		if err != nil || !ok {
			t.Fatalf("Next() = %v, %v", ok, err)
		}
		if got := selected(t, f); got != want {
			t.Errorf("selection = %q, want %q", got, want)
		}
	}
}

func TestCycle_VisitsEachOnceThenRepeats(t *testing.T) {
	f := surface.NewField("before ")
	end, _ := f.ReplaceRange(7, 7, "%a% and %b% or %c%")
	e := NewEngine(Cycle)
	e.Arm(f, 7, end)

	want := []string{"%a%", "%b%", "%c%", "%a%"}
	for i, w := range want {
		if ok, err := e.Next(); !ok || err != nil {
			t.Fatalf("Next() #%d = %v, %v", i, ok, err)
		}
		if got := selected(t, f); got != w {
			t.Errorf("Next() #%d selected %q, want %q", i, got, w)
		}
	}
}

func TestTerminate_DisarmsAfterLast(t *testing.T) {
	f := surface.NewField("")
	end, _ := f.ReplaceRange(0, 0, "%a% %b%")
	e := NewEngine(Terminate)
	e.Arm(f, 0, end)

	for i := 0; i < 2; i++ {
		if ok, _ := e.Next(); !ok {
			t.Fatalf("Next() #%d = false", i)
		}
	}
	if ok, _ := e.Next(); ok {
		t.Error("Next() past the last placeholder = true, want false")
	}
	if e.Armed() {
		t.Error("engine still armed after terminating")
	}
}

func TestNext_TracksEditsAndSkipsFilled(t *testing.T) {
	f := surface.NewField("")
	end, _ := f.ReplaceRange(0, 0, "Dear %name%, about %topic%. %sig%")
	e := NewEngine(Cycle)
	e.Arm(f, 0, end)

	if ok, _ := e.Next(); !ok || selected(t, f) != "%name%" {
		t.Fatalf("first Next() selected %q", selected(t, f))
	}
	f.Type("Alexandria")

	if ok, _ := e.Next(); !ok || selected(t, f) != "%topic%" {
		t.Fatalf("second Next() selected %q", selected(t, f))
	}
	s, _ := f.Selection()
	if s != 23 {
		t.Errorf("%%topic%% starts at %d, want 23 after the edit", s)
	}
	f.Type("x")

	if ok, _ := e.Next(); !ok || selected(t, f) != "%sig%" {
		t.Fatalf("third Next() selected %q", selected(t, f))
	}
	// Only %sig% is left; cycling lands on it again.
	if ok, _ := e.Next(); !ok || selected(t, f) != "%sig%" {
		t.Fatalf("fourth Next() selected %q", selected(t, f))
	}
	f.Type("Bo")
	if ok, _ := e.Next(); ok {
		t.Error("Next() with every placeholder filled = true, want false")
	}
	if e.Armed() {
		t.Error("engine still armed")
	}
	if got := f.Text(); got != "Dear Alexandria, about x. Bo" {
		t.Errorf("Text() = %q", got)
	}
}

func TestArm_OnlyScansInsertedRange(t *testing.T) {
	f := surface.NewField("%old% ")
	end, _ := f.ReplaceRange(6, 6, "plain")
	e := NewEngine(Cycle)
	if n := e.Arm(f, 6, end); n != 0 || e.Armed() {
		t.Errorf("Arm() = %d, armed = %v; want idle", n, e.Armed())
	}
}

func TestArm_ReplacesPreviousSet(t *testing.T) {
	f := surface.NewField("")
	end, _ := f.ReplaceRange(0, 0, "%a% ")
	e := NewEngine(Cycle)
	e.Arm(f, 0, end)
	_, _ = e.Next()

	end2, _ := f.ReplaceRange(end, end, "%z%")
	e.Arm(f, end, end2)
	if got := e.Tokens(); len(got) != 1 || got[0] != "%z%" || e.Cursor() != -1 {
		t.Errorf("re-armed Tokens() = %v, Cursor() = %d", got, e.Cursor())
	}
}

func TestRichDocument(t *testing.T) {
	d, err := surface.NewRichDocument("<p>Hi </p>")
	if err != nil {
		t.Fatalf("NewRichDocument() error = %v", err)
	}
	end, err := d.ReplaceRange(3, 3, "<b>%name%</b>, <i>%day%</i>")
	if err != nil {
		t.Fatalf("ReplaceRange() error = %v", err)
	}
	e := NewEngine(Cycle)
	if n := e.Arm(d, 3, end); n != 2 {
		t.Fatalf("Arm() = %d, want 2", n)
	}
	_, _ = e.Next()
	d.Type("Ann")
	if ok, _ := e.Next(); !ok || selected(t, d) != "%day%" {
		t.Fatalf("Next() selected %q, want %%day%%", selected(t, d))
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": Cycle, "cycle": Cycle, "terminate": Terminate} {
		if got, err := ParsePolicy(in); err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePolicy("loop"); err == nil {
		t.Error("ParsePolicy(loop) error = nil")
	}
}
