package conversation

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestApplyUpdateSetOverwrites(t *testing.T) {
	c := &Context{Data: map[string]any{"name": "Bob"}}
	err := applyUpdate(context.Background(), c, DataUpdate{
		Set: map[string]any{"name": "Alice", "age": 30},
	})
	if err != nil {
		t.Fatalf("applyUpdate: %v", err)
	}
	if c.Data["name"] != "Alice" || c.Data["age"] != 30 {
		t.Fatalf("unexpected data: %v", c.Data)
	}
}

func TestApplyUpdateExtendInitializesAbsentKey(t *testing.T) {
	c := &Context{}
	err := applyUpdate(context.Background(), c, DataUpdate{
		Extend: map[string]any{"tags": "vip"},
	})
	if err != nil {
		t.Fatalf("applyUpdate: %v", err)
	}
	want := []any{"vip"}
	if !reflect.DeepEqual(c.Data["tags"], want) {
		t.Fatalf("tags = %v, want %v", c.Data["tags"], want)
	}
}

func TestApplyUpdateExtendMonotonic(t *testing.T) {
	c := &Context{Data: map[string]any{"tags": []any{"a", "b"}}}
	u := DataUpdate{Extend: map[string]any{"tags": []any{"x", "y"}}}

	for i := 0; i < 2; i++ {
		if err := applyUpdate(context.Background(), c, u); err != nil {
			t.Fatalf("applyUpdate #%d: %v", i, err)
		}
	}
	want := []any{"a", "b", "x", "y", "x", "y"}
	if !reflect.DeepEqual(c.Data["tags"], want) {
		t.Fatalf("tags = %v, want %v", c.Data["tags"], want)
	}
}

func TestApplyUpdateExtendCoercesStoredStringList(t *testing.T) {
	c := &Context{}
	err := applyUpdate(context.Background(), c, DataUpdate{
		Set: map[string]any{"tags": []string{"vip"}},
	})
	if err != nil {
		t.Fatalf("set: %v", err)
	}

	// A stored []string is still a list and must extend, not error.
	err = applyUpdate(context.Background(), c, DataUpdate{
		Extend: map[string]any{"tags": "beta"},
	})
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	want := []any{"vip", "beta"}
	if !reflect.DeepEqual(c.Data["tags"], want) {
		t.Fatalf("tags = %v, want %v", c.Data["tags"], want)
	}
}

func TestApplyUpdateExtendTypeMismatchIsPartial(t *testing.T) {
	c := &Context{Data: map[string]any{"name": "Alice"}}
	err := applyUpdate(context.Background(), c, DataUpdate{
		Extend: map[string]any{
			"name": "oops",
			"tags": "vip",
		},
	})
	if !errors.Is(err, ErrNotList) {
		t.Fatalf("err = %v, want ErrNotList", err)
	}
	// The failing key is untouched, the valid key still applied.
	if c.Data["name"] != "Alice" {
		t.Fatalf("name = %v, want Alice", c.Data["name"])
	}
	if !reflect.DeepEqual(c.Data["tags"], []any{"vip"}) {
		t.Fatalf("tags = %v", c.Data["tags"])
	}
}

func TestApplyUpdateDeleteIdempotent(t *testing.T) {
	c := &Context{Data: map[string]any{"keep": 1}}
	err := applyUpdate(context.Background(), c, DataUpdate{
		Delete: []string{"absent"},
	})
	if err != nil {
		t.Fatalf("deleting absent key must not fail: %v", err)
	}
	if !reflect.DeepEqual(c.Data, map[string]any{"keep": 1}) {
		t.Fatalf("map changed by absent delete: %v", c.Data)
	}

	if err := applyUpdate(context.Background(), c, DataUpdate{Delete: []string{"keep"}}); err != nil {
		t.Fatalf("applyUpdate: %v", err)
	}
	if _, ok := c.Data["keep"]; ok {
		t.Fatal("keep should be deleted")
	}
}

func TestToList(t *testing.T) {
	if got := toList("x"); !reflect.DeepEqual(got, []any{"x"}) {
		t.Fatalf("toList scalar = %v", got)
	}
	if got := toList([]any{1, 2}); !reflect.DeepEqual(got, []any{1, 2}) {
		t.Fatalf("toList list = %v", got)
	}
	if got := toList([]string{"a"}); !reflect.DeepEqual(got, []any{"a"}) {
		t.Fatalf("toList string slice = %v", got)
	}
	if got := toList(nil); got != nil {
		t.Fatalf("toList nil = %v", got)
	}
}

func TestCollectFirstPerType(t *testing.T) {
	first := DataUpdate{Set: map[string]any{"k": 1}}
	second := DataUpdate{Set: map[string]any{"k": 2}}
	target := Switch(Next())
	signal := ExceptionSignal{Question: Ask("nope")}

	update, st, ex := collect([]Directive{first, signal, second, target})
	if update == nil || update.Set["k"] != 1 {
		t.Fatalf("update = %+v, want first instance", update)
	}
	if st == nil || st.Target.kind != targetNext {
		t.Fatalf("target = %+v", st)
	}
	if ex == nil || len(ex.Question) != 1 {
		t.Fatalf("signal = %+v", ex)
	}

	update, st, ex = collect(nil)
	if update != nil || st != nil || ex != nil {
		t.Fatal("collect(nil) must find nothing")
	}
}
