package telegram

import (
	"context"
	"log"
	"math/rand"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	json "github.com/goccy/go-json"
)

// реакции, которые Telegram принимает без Premium
var allowedReactions = map[string]bool{
	"👍": true, "👎": true, "❤️": true, "🔥": true, "👏": true,
	"😁": true, "🤔": true, "😱": true, "🎉": true, "🙏": true,
}

// maybeReact — на неадресованное сообщение бот иногда ставит
// эмодзи-реакцию. Исчерпание лимитов здесь штатно: просто пропускаем.
func (app *BotApp) maybeReact(ctx context.Context, msg *tgbotapi.Message) {
	if !app.cfg.EnableReactions {
		return
	}
	if rand.Float64() > app.cfg.ReactionProbability {
		return
	}

	emoji, err := app.ai.React(ctx, msg.Chat.ID)
	if err != nil {
		log.Printf("[react] skip chat=%d err=%v", msg.Chat.ID, err)
		return
	}
	if !allowedReactions[emoji] {
		emoji = "👍"
	}

	app.setReaction(msg.Chat.ID, msg.MessageID, emoji)
}

// setMessageReaction в v5-клиенте не завёрнут, зовём метод напрямую.
func (app *BotApp) setReaction(chatID int64, messageID int, emoji string) {
	reaction, err := json.Marshal([]map[string]string{{"type": "emoji", "emoji": emoji}})
	if err != nil {
		return
	}

	params := tgbotapi.Params{
		"chat_id":    strconv.FormatInt(chatID, 10),
		"message_id": strconv.Itoa(messageID),
		"reaction":   string(reaction),
	}
	if _, err := app.bot.MakeRequest("setMessageReaction", params); err != nil {
		log.Printf("[react] set fail chat=%d msg=%d err=%v", chatID, messageID, err)
	}
}
