package telegram

import (
	"context"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vstarikov/govorun/internal/history"
)

func (app *BotApp) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	// берём самый крупный размер
	photo := msg.Photo[len(msg.Photo)-1]
	data, err := app.downloadFile(photo.FileID)
	if err != nil {
		log.Printf("[photo] download fail chat=%d err=%v", chatID, err)
		app.reply(msg, "⚠️ Не удалось получить фото.")
		return
	}
	go app.archiveMedia(".jpg", data, "image/jpeg")

	if app.cfg.EnableScheduleEvents {
		app.handleScheduleEvent(ctx, msg, data)
	}
	if !app.cfg.EnableMessageHandling {
		return
	}

	app.typing(chatID)

	extracted, err := app.ai.ImageToText(ctx, data, "image/jpeg")
	if err != nil {
		app.replyDegraded(ctx, msg, err, "photo")
		return
	}

	text := extracted
	if msg.Caption != "" {
		text = msg.Caption + "\n" + extracted
	}
	log.Printf("[photo] extracted chat=%d %q", chatID, text)

	app.store.Append(history.Entry{
		ChatID: chatID,
		Role:   history.RoleUser,
		Author: authorName(msg.From),
		Text:   text,
		At:     time.Now(),
	})

	// не адресовано боту — отдаём распознанный текст, как с голосовыми
	if !app.isAddressed(msg, text) {
		app.reply(msg, extracted)
		return
	}

	reply, err := app.ai.Reply(ctx, chatID)
	if err != nil {
		app.replyDegraded(ctx, msg, err, "photo")
		return
	}

	app.reply(msg, ">>"+extracted+"\n\n"+reply)
	app.store.Append(history.Entry{
		ChatID: chatID,
		Role:   history.RoleAssistant,
		Text:   reply,
		At:     time.Now(),
	})
}

func (app *BotApp) handleScheduleEvent(ctx context.Context, msg *tgbotapi.Message, data []byte) {
	chatID := msg.Chat.ID
	app.typing(chatID)

	ev, err := app.ai.ParseEvent(ctx, data, "image/jpeg")
	if err != nil {
		log.Printf("[event] parse fail chat=%d err=%v", chatID, err)
		app.reply(msg, "Не получилось разобрать событие на фото.")
		app.notify.Notify(ctx, err, "Разбор события с фото не удался")
		return
	}

	if ev.LowConfidence() {
		app.reply(msg, "Не уверен в деталях события, но вот что получилось.")
	}
	app.reply(msg, ev.Message())
	log.Printf("[event] parsed chat=%d title=%q date=%s", chatID, ev.Title, ev.Date)
}
