package notificator

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type TelegramNotificator struct {
	bot         *tgbotapi.BotAPI
	adminChatID int64
}

func NewTelegramNotificator(adminChatID int64) *TelegramNotificator {
	return &TelegramNotificator{adminChatID: adminChatID}
}

// SetBot — бот появляется позже нотификатора, докидываем его после инициализации.
func (n *TelegramNotificator) SetBot(bot *tgbotapi.BotAPI) {
	n.bot = bot
}

func (n *TelegramNotificator) Notify(_ context.Context, err error, details string) {
	if n.bot == nil || n.adminChatID == 0 {
		return
	}

	text := fmt.Sprintf("❗ Ошибка в боте\n\nОшибка: %v\n\nДетали: %s", err, details)
	if _, sendErr := n.bot.Send(tgbotapi.NewMessage(n.adminChatID, text)); sendErr != nil {
		log.Printf("[notificator] send fail: %v", sendErr)
	}
}
