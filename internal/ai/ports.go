package ai

import (
	"context"

	"github.com/vstarikov/govorun/internal/history"
)

// Prompt — собранный контекст генерации: системная инструкция плюс
// история чата, от старых сообщений к новым. Последняя запись истории —
// сообщение, на которое отвечаем.
type Prompt struct {
	System  string
	History []history.Entry
}

// Client — провайдер моделей. Реализации не знают про лимиты и выбор
// бэкенда: model приходит от роутера.
type Client interface {
	Generate(ctx context.Context, model string, p Prompt) (string, error)
	Transcribe(ctx context.Context, model string, audio []byte, mime, language string) (string, error)
	ImageToText(ctx context.Context, model string, image []byte, mime, instruction string) (string, error)
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)
