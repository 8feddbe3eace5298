package ai

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/vstarikov/govorun/internal/calendar"
	"github.com/vstarikov/govorun/internal/history"
	"github.com/vstarikov/govorun/internal/router"
)

const callTimeout = 120 * time.Second

// сколько последних сообщений показываем модели реакций
const reactionHistoryTail = 8

const eventInstruction = `Extract a calendar event from this image.
Return only JSON, no prose:
{"title": string, "date": "YYYY-MM-DD", "time": "HH:MM" or null,
"location": string or null, "description": string or null, "confidence": number 0..1}`

// Service — единая точка обращений к моделям: выбирает бэкенд через
// роутер, зовёт нужного провайдера и откатывается на следующий бэкенд,
// если провайдер ответил квотной ошибкой.
type Service struct {
	router   *router.Router
	clients  map[string]Client
	store    *history.Store
	language string
	maxTries int
}

func NewService(r *router.Router, clients map[string]Client, store *history.Store, language string) (*Service, error) {
	backends := r.Backends()
	for _, b := range backends {
		if _, ok := clients[b.Provider]; !ok {
			return nil, fmt.Errorf("backend %q: no client for provider %q", b.Name, b.Provider)
		}
	}
	return &Service{
		router:   r,
		clients:  clients,
		store:    store,
		language: language,
		maxTries: len(backends),
	}, nil
}

// withBackend перебирает бэкенды: на каждый заход роутер списывает квоту,
// квотная ошибка провайдера выключает бэкенд до следующих суток, любая
// другая ошибка уходит наружу сразу.
func (s *Service) withBackend(ctx context.Context, op router.Operation,
	call func(ctx context.Context, c Client, b router.Backend) (string, error)) (string, error) {

	var lastErr error
	for attempt := 1; attempt <= s.maxTries; attempt++ {
		b, err := s.router.Select(op)
		if err != nil {
			if lastErr != nil {
				return "", lastErr
			}
			return "", err
		}

		cctx, cancel := context.WithTimeout(ctx, callTimeout)
		out, err := call(cctx, s.clients[b.Provider], b)
		cancel()

		if err == nil {
			return out, nil
		}
		if !isQuotaError(err) {
			return "", err
		}

		log.Printf("[ai] backend %s exhausted upstream (%d/%d): %v", b.Name, attempt, s.maxTries, err)
		s.router.Exhaust(b.Name)
		lastErr = err
	}
	return "", lastErr
}

// isQuotaError — диагностика по тексту ошибки: провайдеры по-разному
// сообщают о превышении лимитов.
func isQuotaError(err error) bool {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"):
		return true
	case strings.Contains(msg, "resource_exhausted"), strings.Contains(msg, "resource exhausted"):
		return true
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "quota"):
		return true
	}
	return false
}

// Reply строит ответ на последнее сообщение чата. История уже содержит
// это сообщение: хендлер сначала пишет в стор, потом зовёт Reply.
func (s *Service) Reply(ctx context.Context, chatID int64) (string, error) {
	p := Prompt{
		System:  s.systemPrompt(),
		History: s.store.Context(chatID),
	}
	return s.withBackend(ctx, router.OpGeneration, func(ctx context.Context, c Client, b router.Backend) (string, error) {
		return c.Generate(ctx, b.Model, p)
	})
}

func (s *Service) Transcribe(ctx context.Context, audio []byte, mime string) (string, error) {
	return s.withBackend(ctx, router.OpTranscription, func(ctx context.Context, c Client, b router.Backend) (string, error) {
		return c.Transcribe(ctx, b.Model, audio, mime, s.language)
	})
}

func (s *Service) ImageToText(ctx context.Context, image []byte, mime string) (string, error) {
	instruction := fmt.Sprintf("Extract the text from this image and briefly describe it in %s.", s.language)
	return s.withBackend(ctx, router.OpGeneration, func(ctx context.Context, c Client, b router.Backend) (string, error) {
		return c.ImageToText(ctx, b.Model, image, mime, instruction)
	})
}

// React подбирает одну эмодзи-реакцию на хвост истории чата.
func (s *Service) React(ctx context.Context, chatID int64) (string, error) {
	entries := s.store.Context(chatID)
	if len(entries) == 0 {
		return "", fmt.Errorf("chat %d: empty history", chatID)
	}
	if len(entries) > reactionHistoryTail {
		entries = entries[len(entries)-reactionHistoryTail:]
	}

	p := Prompt{
		System:  "Выбери одну эмодзи-реакцию на последнее сообщение. Ответь только эмодзи, без текста. Варианты: 👍 👎 ❤️ 🔥 👏 😁 🤔 😱 🎉 🙏",
		History: entries,
	}
	out, err := s.withBackend(ctx, router.OpReaction, func(ctx context.Context, c Client, b router.Backend) (string, error) {
		return c.Generate(ctx, b.Model, p)
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ParseEvent достаёт календарное событие с фото.
func (s *Service) ParseEvent(ctx context.Context, image []byte, mime string) (calendar.Event, error) {
	raw, err := s.withBackend(ctx, router.OpGeneration, func(ctx context.Context, c Client, b router.Backend) (string, error) {
		return c.ImageToText(ctx, b.Model, image, mime, eventInstruction)
	})
	if err != nil {
		return calendar.Event{}, err
	}
	return calendar.ParseModelOutput(raw)
}

func (s *Service) systemPrompt() string {
	if s.language == "ru" {
		return "Ты — дружелюбный ассистент в групповом чате. Отвечай кратко, по делу и на русском."
	}
	return fmt.Sprintf("You are a friendly group chat assistant. Reply briefly, in %s.", s.language)
}
