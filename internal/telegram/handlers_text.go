package telegram

import (
	"context"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vstarikov/govorun/internal/history"
)

func (app *BotApp) handleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := msg.Text
	author := authorName(msg.From)

	log.Printf("[text] start chat=%d from=%s", chatID, author)

	app.store.Append(history.Entry{
		ChatID: chatID,
		Role:   history.RoleUser,
		Author: author,
		Text:   text,
		At:     time.Now(),
	})

	if !app.isAddressed(msg, text) {
		app.maybeReact(ctx, msg)
		return
	}

	app.typing(chatID)

	reply, err := app.ai.Reply(ctx, chatID)
	if err != nil {
		app.replyDegraded(ctx, msg, err, "text")
		return
	}

	app.reply(msg, reply)
	app.store.Append(history.Entry{
		ChatID: chatID,
		Role:   history.RoleAssistant,
		Text:   reply,
		At:     time.Now(),
	})

	log.Printf("[text] done chat=%d", chatID)
}
