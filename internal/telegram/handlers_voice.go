package telegram

import (
	"context"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vstarikov/govorun/internal/history"
)

func (app *BotApp) handleVoice(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	author := authorName(msg.From)

	log.Printf("[voice] start chat=%d from=%s duration=%ds", chatID, author, msg.Voice.Duration)

	data, err := app.downloadFile(msg.Voice.FileID)
	if err != nil {
		log.Printf("[voice] download fail chat=%d err=%v", chatID, err)
		app.reply(msg, "⚠️ Не удалось получить голосовое.")
		return
	}
	go app.archiveMedia(".ogg", data, "audio/ogg")

	app.typing(chatID)

	text, err := app.ai.Transcribe(ctx, data, "audio/ogg")
	if err != nil {
		app.replyDegraded(ctx, msg, err, "voice")
		return
	}
	log.Printf("[voice] transcribed chat=%d %q", chatID, text)

	app.store.Append(history.Entry{
		ChatID: chatID,
		Role:   history.RoleUser,
		Author: author,
		Text:   text,
		At:     time.Now(),
	})

	// не адресовано боту — просто отдаём расшифровку
	if !app.isAddressed(msg, text) {
		app.reply(msg, text)
		return
	}

	reply, err := app.ai.Reply(ctx, chatID)
	if err != nil {
		app.replyDegraded(ctx, msg, err, "voice")
		return
	}

	// цитируем расшифровку, чтобы было видно, на что отвечаем
	app.reply(msg, ">>"+text+"\n\n"+reply)
	app.store.Append(history.Entry{
		ChatID: chatID,
		Role:   history.RoleAssistant,
		Text:   reply,
		At:     time.Now(),
	})

	log.Printf("[voice] done chat=%d", chatID)
}
