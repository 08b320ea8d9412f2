// Package keyboard builds reply markups used as question attachments.
package keyboard

import tele "gopkg.in/telebot.v4"

// Inline describes one inline button.
type Inline struct {
	Text   string
	Unique string
	Data   string
}

const cancelLabel = "❌ Cancel"

// ForceReply returns a markup that forces the user to reply.
func ForceReply() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{ForceReply: true}
}

// Remove returns a markup that hides the reply keyboard.
func Remove() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// Reply builds a reply keyboard from rows of button labels.
func Reply(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	var keyboard []tele.Row
	for _, row := range rows {
		var buttons []tele.Btn
		for _, label := range row {
			buttons = append(buttons, markup.Text(label))
		}
		keyboard = append(keyboard, markup.Row(buttons...))
	}
	markup.Reply(keyboard...)
	return markup
}

// InlineRows builds an inline keyboard from rows of Inline buttons.
func InlineRows(rows ...[]Inline) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	keyboard := make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = *markup.Data(btn.Text, btn.Unique, btn.Data).Inline()
		}
		keyboard[i] = r
	}
	markup.InlineKeyboard = keyboard
	return markup
}

// InlineColumn builds an inline keyboard with one button per row.
func InlineColumn(buttons ...Inline) *tele.ReplyMarkup {
	rows := make([][]Inline, len(buttons))
	for i, b := range buttons {
		rows[i] = []Inline{b}
	}
	return InlineRows(rows...)
}

// InlineGrid splits a flat list of buttons into rows with up to
// perRow buttons each. perRow <= 1 falls back to one per row.
func InlineGrid(buttons []Inline, perRow int) *tele.ReplyMarkup {
	if perRow <= 1 {
		return InlineColumn(buttons...)
	}
	var rows [][]Inline
	for i := 0; i < len(buttons); i += perRow {
		end := i + perRow
		if end > len(buttons) {
			end = len(buttons)
		}
		rows = append(rows, buttons[i:end])
	}
	return InlineRows(rows...)
}

// Cancel returns an inline keyboard with a single cancel button for
// the given callback action. An optional label overrides the default.
func Cancel(action string, label ...string) *tele.ReplyMarkup {
	text := cancelLabel
	if len(label) > 0 && label[0] != "" {
		text = label[0]
	}
	return InlineColumn(Inline{Text: text, Unique: action, Data: "cancel"})
}
