package conversation

import (
	"errors"
	"testing"
)

func testGroup(t *testing.T) *Group {
	t.Helper()
	g, err := NewGroup("signup",
		StateDef{Name: "ask_name", Questions: Ask("What is your name?")},
		StateDef{Name: "ask_age", Questions: Ask("How old are you?")},
		StateDef{Name: "done", Questions: Ask("All set!")},
	)
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}
	return g
}

func TestGroupNextPreviousBounds(t *testing.T) {
	g := testGroup(t)
	s0, s1, s2 := g.States()[0], g.States()[1], g.States()[2]

	if got := g.Next(s0); got != s1 {
		t.Fatalf("Next(s0) = %v, want s1", got)
	}
	if got := g.Next(s1); got != s2 {
		t.Fatalf("Next(s1) = %v, want s2", got)
	}
	if got := g.Next(s2); got != nil {
		t.Fatalf("Next(last) = %v, want nil", got)
	}

	if got := g.Previous(s1); got != s0 {
		t.Fatalf("Previous(s1) = %v, want s0", got)
	}
	if got := g.Previous(s0); got != nil {
		t.Fatalf("Previous(first) = %v, want nil", got)
	}
	if got := g.Previous(s2); got != s1 {
		t.Fatalf("Previous(s2) = %v, want s1", got)
	}
}

func TestGroupLostStateFallsBackToFirstOnNext(t *testing.T) {
	g := testGroup(t)
	other, err := NewGroup("other",
		StateDef{Name: "elsewhere", Questions: Ask("?")},
	)
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}
	foreign := other.States()[0]

	if got := g.Next(foreign); got != g.First() {
		t.Fatalf("Next(foreign) = %v, want first state", got)
	}
	// Previous has no fallback. Kept asymmetric on purpose.
	if got := g.Previous(foreign); got != nil {
		t.Fatalf("Previous(foreign) = %v, want nil", got)
	}
	if got := g.Next(nil); got != g.First() {
		t.Fatalf("Next(nil) = %v, want first state", got)
	}
}

func TestGroupFirstLast(t *testing.T) {
	g := testGroup(t)
	if g.First().Name() != "ask_name" {
		t.Fatalf("First = %s", g.First().Name())
	}
	if g.Last().Name() != "done" {
		t.Fatalf("Last = %s", g.Last().Name())
	}
}

func TestNewGroupValidation(t *testing.T) {
	if _, err := NewGroup("empty"); !errors.Is(err, ErrEmptyGroup) {
		t.Fatalf("empty group err = %v, want ErrEmptyGroup", err)
	}
	_, err := NewGroup("dups",
		StateDef{Name: "a", Questions: Ask("a?")},
		StateDef{Name: "a", Questions: Ask("again?")},
	)
	if !errors.Is(err, ErrDuplicateState) {
		t.Fatalf("duplicate err = %v, want ErrDuplicateState", err)
	}
	if _, err := NewGroup("noq", StateDef{Name: "a"}); err == nil {
		t.Fatal("expected error for state without questions")
	}
}

func TestBuildRegistry(t *testing.T) {
	g := testGroup(t)
	reg, err := BuildRegistry(g)
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}

	st, ok := reg.Lookup("ask_age")
	if !ok || st.Name() != "ask_age" {
		t.Fatalf("Lookup(ask_age) = %v, %v", st, ok)
	}
	if st.Group() != g {
		t.Fatal("looked-up state must navigate via its owning group")
	}
	if _, ok := reg.Lookup("missing"); ok {
		t.Fatal("Lookup(missing) must report not found")
	}
	if _, ok := reg.Lookup(""); ok {
		t.Fatal("Lookup of empty name must report not found")
	}
}

func TestBuildRegistryRejectsCrossGroupDuplicates(t *testing.T) {
	g1 := testGroup(t)
	g2, err := NewGroup("clash",
		StateDef{Name: "ask_name", Questions: Ask("name again?")},
	)
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}
	if _, err := BuildRegistry(g1, g2); !errors.Is(err, ErrDuplicateState) {
		t.Fatalf("cross-group duplicate err = %v, want ErrDuplicateState", err)
	}
}
