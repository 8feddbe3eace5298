package history

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Store держит историю сообщений по чатам: в памяти — ограниченное
// токен-бюджетом окно, на диске — append-only jsonl-лог без усечения.
// Память авторитетна для работающего процесса, файл — для рестартов и
// отладки.
type Store struct {
	limit int
	path  string

	mu   sync.RWMutex
	logs map[int64]*chatLog

	fileMu sync.Mutex
	file   *os.File

	log *zap.SugaredLogger
}

type chatLog struct {
	mu      sync.Mutex
	entries []Entry
	tokens  int
}

func (l *chatLog) push(e Entry) {
	l.entries = append(l.entries, e)
	l.tokens += e.EstimatedTokens()
}

// evict вытесняет старейшие записи, пока оценка не уложится в бюджет.
// Последняя запись не вытесняется, даже если сама по себе не влезает:
// худший случай — превышение на размер одной записи.
func (l *chatLog) evict(limit int) {
	for l.tokens > limit && len(l.entries) > 1 {
		l.tokens -= l.entries[0].EstimatedTokens()
		l.entries = l.entries[1:]
	}
}

func New(tokenLimit int, path string, log *zap.SugaredLogger) (*Store, error) {
	if tokenLimit <= 0 {
		return nil, fmt.Errorf("token limit must be positive, got %d", tokenLimit)
	}

	s := &Store{
		limit: tokenLimit,
		path:  path,
		logs:  make(map[int64]*chatLog),
		log:   log,
	}

	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open store file: %w", err)
		}
		s.file = f
	}
	return s, nil
}

// Load проигрывает jsonl-лог в память в порядке файла и заново применяет
// вытеснение. Битая строка (например, оборванная при нештатном завершении)
// пропускается с предупреждением.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open store file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			s.log.Warnw("skipping corrupted store line", "path", s.path, "line", line, "err", err)
			continue
		}

		cl := s.chat(e.ChatID)
		cl.mu.Lock()
		cl.push(e)
		cl.evict(s.limit)
		cl.mu.Unlock()
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read store file: %w", err)
	}
	return nil
}

func (s *Store) chat(chatID int64) *chatLog {
	s.mu.RLock()
	cl := s.logs[chatID]
	s.mu.RUnlock()
	if cl != nil {
		return cl
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cl = s.logs[chatID]; cl == nil {
		cl = &chatLog{}
		s.logs[chatID] = cl
	}
	return cl
}

// Append дописывает запись в лог чата и вытесняет старьё сверх бюджета.
// Запись на диск идёт вне критической секции чата; ошибка диска логируется
// и не влияет на состояние в памяти.
func (s *Store) Append(e Entry) {
	cl := s.chat(e.ChatID)
	cl.mu.Lock()
	cl.push(e)
	cl.evict(s.limit)
	cl.mu.Unlock()

	s.persist(e)
}

func (s *Store) persist(e Entry) {
	if s.file == nil {
		return
	}

	raw, err := json.Marshal(e)
	if err != nil {
		s.log.Warnw("store entry marshal failed", "chat_id", e.ChatID, "err", err)
		return
	}
	raw = append(raw, '\n')

	s.fileMu.Lock()
	_, err = s.file.Write(raw)
	s.fileMu.Unlock()
	if err != nil {
		s.log.Warnw("store append failed, in-memory state kept", "path", s.path, "err", err)
	}
}

// Context возвращает независимый снимок лога чата, от старых к новым.
func (s *Store) Context(chatID int64) []Entry {
	s.mu.RLock()
	cl := s.logs[chatID]
	s.mu.RUnlock()
	if cl == nil {
		return nil
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	out := make([]Entry, len(cl.entries))
	copy(out, cl.entries)
	return out
}

// EstimatedTokens — текущая оценка размера лога чата.
func (s *Store) EstimatedTokens(chatID int64) int {
	s.mu.RLock()
	cl := s.logs[chatID]
	s.mu.RUnlock()
	if cl == nil {
		return 0
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.tokens
}

// Compact переписывает файл из текущего состояния памяти: диск перестаёт
// быть надмножеством истории, зато ограничивается в размере. Запускается
// фоновой джобой по расписанию, если включено.
func (s *Store) Compact() error {
	if s.path == "" {
		return nil
	}

	s.mu.RLock()
	ids := make([]int64, 0, len(s.logs))
	for id := range s.logs {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create compact tmp: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, id := range ids {
		for _, e := range s.Context(id) {
			raw, err := json.Marshal(e)
			if err != nil {
				continue
			}
			raw = append(raw, '\n')
			if _, err := w.Write(raw); err != nil {
				f.Close()
				os.Remove(tmp)
				return fmt.Errorf("write compact tmp: %w", err)
			}
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush compact tmp: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close compact tmp: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace store file: %w", err)
	}

	if s.file != nil {
		s.file.Close()
	}
	nf, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		s.file = nil
		return fmt.Errorf("reopen store file: %w", err)
	}
	s.file = nf
	return nil
}

func (s *Store) Close() error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
