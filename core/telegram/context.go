package telegram

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/convoflow/core/conversation"
	"github.com/m3rciful/convoflow/core/logger"
)

// UpdateContext derives a request context and conversation ID from an
// incoming update. The context carries the request id and chat/user
// metadata, so every log line produced while handling the update is
// correlated.
func UpdateContext(c tele.Context) (context.Context, conversation.ID) {
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if from := c.Sender(); from != nil {
		userID = from.ID
	}

	ctx := context.Background()
	ctx = logger.WithRID(ctx, logger.BuildRID(chatID, userID))
	ctx = logger.WithConversationMeta(ctx, chatID, userID)
	return ctx, conversation.ID{ChatID: chatID, UserID: userID}
}
