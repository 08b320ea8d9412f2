package keyboard

import "testing"

func TestReplyLayout(t *testing.T) {
	markup := Reply([]string{"Yes", "No"}, []string{"Skip"})
	if !markup.ResizeKeyboard {
		t.Error("expected ResizeKeyboard")
	}
	if len(markup.ReplyKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(markup.ReplyKeyboard))
	}
	if len(markup.ReplyKeyboard[0]) != 2 || len(markup.ReplyKeyboard[1]) != 1 {
		t.Fatalf("unexpected row sizes: %v", markup.ReplyKeyboard)
	}
	if markup.ReplyKeyboard[0][0].Text != "Yes" {
		t.Errorf("first button = %q, want Yes", markup.ReplyKeyboard[0][0].Text)
	}
}

func TestInlineGrid(t *testing.T) {
	buttons := []Inline{
		{Text: "A", Unique: "pick", Data: "a"},
		{Text: "B", Unique: "pick", Data: "b"},
		{Text: "C", Unique: "pick", Data: "c"},
	}

	markup := InlineGrid(buttons, 2)
	if len(markup.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(markup.InlineKeyboard))
	}
	if len(markup.InlineKeyboard[0]) != 2 || len(markup.InlineKeyboard[1]) != 1 {
		t.Fatalf("unexpected row sizes")
	}

	column := InlineGrid(buttons, 0)
	if len(column.InlineKeyboard) != 3 {
		t.Fatalf("column rows = %d, want 3", len(column.InlineKeyboard))
	}
}

func TestCancel(t *testing.T) {
	markup := Cancel("signup_cancel")
	if len(markup.InlineKeyboard) != 1 || len(markup.InlineKeyboard[0]) != 1 {
		t.Fatal("expected single button")
	}
	if got := markup.InlineKeyboard[0][0].Text; got != "❌ Cancel" {
		t.Errorf("label = %q", got)
	}

	custom := Cancel("signup_cancel", "Abort")
	if got := custom.InlineKeyboard[0][0].Text; got != "Abort" {
		t.Errorf("label = %q, want Abort", got)
	}
}
