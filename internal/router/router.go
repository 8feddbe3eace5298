package router

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Operation — вид обращения к модели. На выбор бэкенда влияет только если
// для этой операции настроен отдельный порядок предпочтения.
type Operation string

const (
	OpTranscription Operation = "transcription"
	OpGeneration    Operation = "generation"
	OpReaction      Operation = "reaction"
)

// ErrNoBackendAvailable — все бэкенды исчерпали лимиты. Штатная ситуация:
// роутер сам восстановится при смене минутного или суточного окна.
var ErrNoBackendAvailable = errors.New("no model backend available")

// Backend — один настроенный эндпоинт модели. Порядок в списке значим:
// первый подходящий выигрывает. RPM/RPD == 0 — лимита нет.
type Backend struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	RPM      int    `json:"rpm"`
	RPD      int    `json:"rpd"`
}

type usageCounter struct {
	minuteStart time.Time
	minuteCount int
	dayStart    time.Time
	dayCount    int

	// бэкенд выключен до конца этих суток (провайдер вернул 429
	// раньше, чем сработали локальные счётчики)
	exhaustedDay time.Time
}

// roll сбрасывает счётчики при переходе в новое минутное/суточное окно.
func (c *usageCounter) roll(now time.Time) {
	if minute := now.Truncate(time.Minute); !minute.Equal(c.minuteStart) {
		c.minuteStart = minute
		c.minuteCount = 0
	}
	if day := startOfDay(now); !day.Equal(c.dayStart) {
		c.dayStart = day
		c.dayCount = 0
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Router выбирает первый бэкенд, укладывающийся в свои лимиты.
// Счётчики живут только внутри роутера и меняются под одним мьютексом.
type Router struct {
	mu       sync.Mutex
	backends []Backend
	usage    []usageCounter
	order    map[Operation][]int // отдельный порядок для операции
	fallback []int               // порядок по умолчанию — весь список

	now func() time.Time
}

type Option func(*Router) error

// WithClock подменяет источник времени. Нужен тестам.
func WithClock(now func() time.Time) Option {
	return func(r *Router) error {
		if now == nil {
			return errors.New("nil clock")
		}
		r.now = now
		return nil
	}
}

// WithOperationOrder задаёт отдельный порядок бэкендов для операции,
// например выделенную модель для реакций.
func WithOperationOrder(op Operation, names ...string) Option {
	return func(r *Router) error {
		if len(names) == 0 {
			return fmt.Errorf("operation %q: empty backend order", op)
		}
		idx := make([]int, 0, len(names))
		for _, name := range names {
			found := -1
			for i, b := range r.backends {
				if b.Name == name {
					found = i
					break
				}
			}
			if found < 0 {
				return fmt.Errorf("operation %q: unknown backend %q", op, name)
			}
			idx = append(idx, found)
		}
		r.order[op] = idx
		return nil
	}
}

// New валидирует список бэкендов и собирает роутер.
// Кривая конфигурация — ошибка сразу, не в момент вызова.
func New(backends []Backend, opts ...Option) (*Router, error) {
	if len(backends) == 0 {
		return nil, errors.New("empty backend list")
	}

	seen := make(map[string]struct{}, len(backends))
	for i, b := range backends {
		if b.Name == "" {
			return nil, fmt.Errorf("backend #%d: empty name", i)
		}
		if _, dup := seen[b.Name]; dup {
			return nil, fmt.Errorf("backend %q: duplicate name", b.Name)
		}
		seen[b.Name] = struct{}{}
		if b.Provider == "" {
			return nil, fmt.Errorf("backend %q: empty provider", b.Name)
		}
		if b.Model == "" {
			return nil, fmt.Errorf("backend %q: empty model", b.Name)
		}
		if b.RPM < 0 || b.RPD < 0 {
			return nil, fmt.Errorf("backend %q: negative limit rpm=%d rpd=%d", b.Name, b.RPM, b.RPD)
		}
	}

	r := &Router{
		backends: append([]Backend(nil), backends...),
		usage:    make([]usageCounter, len(backends)),
		order:    make(map[Operation][]int),
		fallback: make([]int, len(backends)),
		now:      time.Now,
	}
	for i := range backends {
		r.fallback[i] = i
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Select возвращает первый бэкенд под бюджетом и списывает по единице
// минутной и суточной квоты. Проверка и инкремент — одна критическая
// секция, чтобы два конкурентных вызова не перебрали лимит.
func (r *Router) Select(op Operation) (Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	order, ok := r.order[op]
	if !ok {
		order = r.fallback
	}

	for _, i := range order {
		b := r.backends[i]
		c := &r.usage[i]
		c.roll(now)

		if c.exhaustedDay.Equal(startOfDay(now)) {
			continue
		}
		if b.RPM > 0 && c.minuteCount >= b.RPM {
			continue
		}
		if b.RPD > 0 && c.dayCount >= b.RPD {
			continue
		}

		c.minuteCount++
		c.dayCount++
		return b, nil
	}
	return Backend{}, ErrNoBackendAvailable
}

// Exhaust выключает бэкенд до следующих суток.
func (r *Router) Exhaust(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, b := range r.backends {
		if b.Name == name {
			r.usage[i].exhaustedDay = startOfDay(r.now())
			return
		}
	}
}

// Backends возвращает копию списка в порядке предпочтения.
func (r *Router) Backends() []Backend {
	return append([]Backend(nil), r.backends...)
}

// UsageSnapshot — срез счётчиков одного бэкенда для отладочного API.
type UsageSnapshot struct {
	Backend     string    `json:"backend"`
	MinuteStart time.Time `json:"minute_start"`
	MinuteCount int       `json:"minute_count"`
	DayStart    time.Time `json:"day_start"`
	DayCount    int       `json:"day_count"`
	Exhausted   bool      `json:"exhausted"`
}

// Snapshot отдаёт текущее состояние счётчиков. Окна пересчитываются,
// квота не списывается.
func (r *Router) Snapshot() []UsageSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	out := make([]UsageSnapshot, 0, len(r.backends))
	for i, b := range r.backends {
		c := &r.usage[i]
		c.roll(now)
		out = append(out, UsageSnapshot{
			Backend:     b.Name,
			MinuteStart: c.minuteStart,
			MinuteCount: c.minuteCount,
			DayStart:    c.dayStart,
			DayCount:    c.dayCount,
			Exhausted:   c.exhaustedDay.Equal(startOfDay(now)),
		})
	}
	return out
}
