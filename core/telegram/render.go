// Package telegram adapts the conversation engine to a telebot-driven
// bot: it renders questions through the outbound dispatcher and routes
// incoming updates to per-state handlers.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/convoflow/core/conversation"
	"github.com/m3rciful/convoflow/core/logger"
	"github.com/m3rciful/convoflow/core/telegram/sender"
)

// BotSender delivers conversation questions through the Telegram Bot
// API. Sends for the same chat go through the dispatcher's serial
// queue, so question order within a chat is preserved.
type BotSender struct {
	bot        *tele.Bot
	dispatcher *sender.Dispatcher
}

// NewBotSender wraps a bot and dispatcher into a conversation.Sender.
func NewBotSender(bot *tele.Bot, d *sender.Dispatcher) *BotSender {
	return &BotSender{bot: bot, dispatcher: d}
}

var _ conversation.Sender = (*BotSender)(nil)

// Send delivers one message to the chat and blocks until the
// dispatcher finishes the job, so transport failures reach the caller.
func (s *BotSender) Send(ctx context.Context, chatID int64, body string, attachment any) error {
	opts, err := sendOptions(attachment)
	if err != nil {
		return err
	}
	return s.dispatcher.Do(ctx, chatID, func() error {
		_, err := s.bot.Send(tele.ChatID(chatID), body, opts...)
		if err != nil {
			logger.Debug(ctx, "telegram", "send.attempt.fail",
				slog.Int64("chat_id", chatID),
				slog.String("err", err.Error()),
			)
		}
		return err
	})
}

// sendOptions maps a question attachment onto telebot send options.
// Reply markups pass through as-is; anything else is rejected early so
// the failure points at the question definition, not the transport.
func sendOptions(attachment any) ([]any, error) {
	switch a := attachment.(type) {
	case nil:
		return nil, nil
	case *tele.ReplyMarkup:
		if a == nil {
			return nil, nil
		}
		return []any{a}, nil
	case *tele.SendOptions:
		if a == nil {
			return nil, nil
		}
		return []any{a}, nil
	case tele.ParseMode:
		return []any{a}, nil
	default:
		return nil, fmt.Errorf("telegram: unsupported attachment type %T", attachment)
	}
}
