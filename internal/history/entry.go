package history

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry — одно сообщение в истории чата. После создания не меняется.
type Entry struct {
	ChatID int64     `json:"chat_id"`
	Role   Role      `json:"role"`
	Author string    `json:"author,omitempty"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// Line — строка "Автор: текст", в таком виде сообщение попадает в контекст.
func (e Entry) Line() string {
	who := e.Author
	if who == "" {
		who = "Bot"
	}
	return who + ": " + strings.TrimSpace(e.Text)
}

// EstimatedTokens — число слов строки. Грубая детерминированная эвристика,
// с токенизацией провайдера не совпадает и не обязана: важно лишь, чтобы
// вытеснение и проверка бюджета считали одинаково.
func (e Entry) EstimatedTokens() int {
	return len(strings.Fields(e.Line()))
}
