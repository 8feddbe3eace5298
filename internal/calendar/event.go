package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Event — событие, извлечённое моделью из фото (афиша, приглашение,
// расписание). Дальше календарных API не идём: бот просто показывает
// разобранное событие в чате.
type Event struct {
	Title       string  `json:"title"`
	Date        string  `json:"date"`           // YYYY-MM-DD
	Time        string  `json:"time,omitempty"` // HH:MM, пусто — весь день
	Location    string  `json:"location,omitempty"`
	Description string  `json:"description,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// ParseModelOutput разбирает ответ модели: срезает обрамление ```json ... ```
// и валидирует обязательные поля.
func ParseModelOutput(raw string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(StripMarkdownFence(raw)), &ev); err != nil {
		return Event{}, fmt.Errorf("parse event json: %w", err)
	}
	if ev.Title == "" {
		return Event{}, errors.New("event without title")
	}
	if ev.Date == "" {
		return Event{}, errors.New("event without date")
	}
	if _, _, err := ev.Start(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// StripMarkdownFence убирает маркдаун-ограждение кода, если модель
// завернула JSON в него.
func StripMarkdownFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = text[len("```json"):]
	} else if strings.HasPrefix(text, "```") {
		text = text[len("```"):]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// Start — время начала в локальной таймзоне; allDay, если время не указано.
func (e Event) Start() (start time.Time, allDay bool, err error) {
	allDay = e.Time == ""
	tm := e.Time
	if tm == "" {
		tm = "00:00"
	}
	start, err = time.ParseInLocation("2006-01-02 15:04", e.Date+" "+tm, time.Local)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid event date/time %q %q: %w", e.Date, e.Time, err)
	}
	return start, allDay, nil
}

// LowConfidence — порог уверенности, ниже которого бот предупреждает,
// что мог ошибиться в деталях.
func (e Event) LowConfidence() bool {
	return e.Confidence < 0.5
}

// Message — готовый текст ответа в чат.
func (e Event) Message() string {
	parts := []string{
		"📅 Нашёл событие:",
		"Название: " + e.Title,
		"Дата: " + e.Date,
	}
	if e.Time != "" {
		parts = append(parts, "Время: "+e.Time)
	} else {
		parts = append(parts, "Весь день")
	}
	if e.Location != "" {
		parts = append(parts, "Место: "+e.Location)
	}
	if e.Description != "" {
		parts = append(parts, e.Description)
	}
	return strings.Join(parts, "\n")
}
