package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// addressed — адресован ли текст боту: алиас/юзернейм в тексте либо
// reply на сообщение бота.
func addressed(text string, aliases []string, replyToBot bool) bool {
	if replyToBot {
		return true
	}
	lower := strings.ToLower(text)
	for _, alias := range aliases {
		if alias != "" && strings.Contains(lower, alias) {
			return true
		}
	}
	return false
}

func (app *BotApp) isAddressed(msg *tgbotapi.Message, text string) bool {
	replyToBot := msg.ReplyToMessage != nil &&
		msg.ReplyToMessage.From != nil &&
		msg.ReplyToMessage.From.ID == app.bot.Self.ID
	return addressed(text, app.aliases, replyToBot)
}
