package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/convoflow/core/logger"
)

// Question is one prompt delivered when a state becomes active.
// Exactly one of the concrete variants below implements it.
type Question interface {
	question()
}

// Text is a plain text question.
type Text struct {
	Body string
}

// RichText is a text question with an opaque attachment, typically a
// keyboard markup understood by the transport adapter.
type RichText struct {
	Body       string
	Attachment any
}

// Action is a deferred side-effecting question. The thunk is awaited
// during rendering; it produces no outbound message unless it sends one
// itself.
type Action struct {
	Run func(ctx context.Context) error
}

func (Text) question()     {}
func (RichText) question() {}
func (Action) question()   {}

// QuestionSet is an ordered sequence of questions rendered in
// declaration order. A state's set must not be empty.
type QuestionSet []Question

// Ask builds a single-question set from plain text.
func Ask(body string) QuestionSet {
	return QuestionSet{Text{Body: body}}
}

// AskWith builds a single-question set with an attachment.
func AskWith(body string, attachment any) QuestionSet {
	return QuestionSet{RichText{Body: body, Attachment: attachment}}
}

// Do builds a single-question set running an action thunk.
func Do(run func(ctx context.Context) error) QuestionSet {
	return QuestionSet{Action{Run: run}}
}

// Sender delivers one outbound message to a chat. Implementations must
// preserve call order for a given chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, body string, attachment any) error
}

// SenderFunc adapts a bare function to the Sender interface.
type SenderFunc func(ctx context.Context, chatID int64, body string, attachment any) error

// Send executes the underlying function.
func (f SenderFunc) Send(ctx context.Context, chatID int64, body string, attachment any) error {
	return f(ctx, chatID, body, attachment)
}

// Render delivers each question of the set sequentially via the sender.
// The first failure aborts rendering and is returned to the caller;
// retries belong to the transport.
func Render(ctx context.Context, s Sender, chatID int64, qs QuestionSet) error {
	for i, q := range qs {
		if err := renderOne(ctx, s, chatID, q); err != nil {
			logger.Error(ctx, "conv", "render.fail",
				slog.Int64("chat_id", chatID),
				slog.Int("question", i),
				slog.String("err", err.Error()),
			)
			return fmt.Errorf("render question %d: %w", i, err)
		}
	}
	return nil
}

func renderOne(ctx context.Context, s Sender, chatID int64, q Question) error {
	switch v := q.(type) {
	case Text:
		return s.Send(ctx, chatID, v.Body, nil)
	case RichText:
		return s.Send(ctx, chatID, v.Body, v.Attachment)
	case Action:
		if v.Run == nil {
			return nil
		}
		return v.Run(ctx)
	default:
		// Unknown variants are skipped rather than failing the cycle.
		logger.Warn(ctx, "conv", "render.unknown_question",
			slog.Int64("chat_id", chatID),
			slog.String("type", fmt.Sprintf("%T", q)),
		)
		return nil
	}
}
