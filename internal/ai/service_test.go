package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vstarikov/govorun/internal/history"
	"github.com/vstarikov/govorun/internal/router"
)

type fakeClient struct {
	generate   func(model string, p Prompt) (string, error)
	transcribe func(model string) (string, error)
	image      func(model, instruction string) (string, error)
}

func (f *fakeClient) Generate(_ context.Context, model string, p Prompt) (string, error) {
	return f.generate(model, p)
}

func (f *fakeClient) Transcribe(_ context.Context, model string, _ []byte, _, _ string) (string, error) {
	return f.transcribe(model)
}

func (f *fakeClient) ImageToText(_ context.Context, model string, _ []byte, _, instruction string) (string, error) {
	return f.image(model, instruction)
}

func newTestService(t *testing.T, backends []router.Backend, client Client) (*Service, *history.Store) {
	t.Helper()
	r, err := router.New(backends, router.WithClock(func() time.Time {
		return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)

	store, err := history.New(1000, "", zap.NewNop().Sugar())
	require.NoError(t, err)

	svc, err := NewService(r, map[string]Client{"fake": client}, store, "ru")
	require.NoError(t, err)
	return svc, store
}

func TestNewServiceRequiresClientPerProvider(t *testing.T) {
	r, err := router.New([]router.Backend{{Name: "a", Provider: "gemini", Model: "flash"}})
	require.NoError(t, err)

	store, err := history.New(1000, "", zap.NewNop().Sugar())
	require.NoError(t, err)

	_, err = NewService(r, map[string]Client{}, store, "ru")
	assert.Error(t, err)
}

func TestReplyUsesStoreContext(t *testing.T) {
	var seen Prompt
	client := &fakeClient{generate: func(model string, p Prompt) (string, error) {
		seen = p
		return "ответ", nil
	}}
	svc, store := newTestService(t, []router.Backend{
		{Name: "a", Provider: "fake", Model: "flash"},
	}, client)

	store.Append(history.Entry{ChatID: 1, Role: history.RoleUser, Author: "Маша", Text: "привет", At: time.Now()})
	store.Append(history.Entry{ChatID: 1, Role: history.RoleAssistant, Text: "здравствуй", At: time.Now()})
	store.Append(history.Entry{ChatID: 1, Role: history.RoleUser, Author: "Маша", Text: "как дела?", At: time.Now()})

	out, err := svc.Reply(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "ответ", out)

	require.Len(t, seen.History, 3)
	assert.Equal(t, "как дела?", seen.History[2].Text)
	assert.NotEmpty(t, seen.System)
}

func TestQuotaErrorFallsBackToNextBackend(t *testing.T) {
	client := &fakeClient{generate: func(model string, p Prompt) (string, error) {
		if model == "flash" {
			return "", errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED")
		}
		return "из резерва", nil
	}}
	svc, store := newTestService(t, []router.Backend{
		{Name: "a", Provider: "fake", Model: "flash"},
		{Name: "b", Provider: "fake", Model: "mini"},
	}, client)
	store.Append(history.Entry{ChatID: 1, Role: history.RoleUser, Author: "X", Text: "вопрос", At: time.Now()})

	out, err := svc.Reply(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "из резерва", out)

	// первый бэкенд выключен до следующих суток
	snap := svc.router.Snapshot()
	assert.True(t, snap[0].Exhausted)
	assert.False(t, snap[1].Exhausted)
}

func TestNonQuotaErrorIsReturnedImmediately(t *testing.T) {
	calls := 0
	client := &fakeClient{generate: func(model string, p Prompt) (string, error) {
		calls++
		return "", errors.New("status code: 401 invalid api key")
	}}
	svc, store := newTestService(t, []router.Backend{
		{Name: "a", Provider: "fake", Model: "flash"},
		{Name: "b", Provider: "fake", Model: "mini"},
	}, client)
	store.Append(history.Entry{ChatID: 1, Role: history.RoleUser, Author: "X", Text: "вопрос", At: time.Now()})

	_, err := svc.Reply(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestAllBackendsExhaustedSurfacesSentinel(t *testing.T) {
	client := &fakeClient{
		generate:   func(string, Prompt) (string, error) { return "", nil },
		transcribe: func(string) (string, error) { return "", nil },
	}
	svc, _ := newTestService(t, []router.Backend{
		{Name: "a", Provider: "fake", Model: "flash", RPM: 1},
	}, client)

	_, err := svc.Transcribe(context.Background(), []byte("ogg"), "audio/ogg")
	require.NoError(t, err)

	_, err = svc.Transcribe(context.Background(), []byte("ogg"), "audio/ogg")
	assert.ErrorIs(t, err, router.ErrNoBackendAvailable)
}

func TestReactTrimsHistoryAndAnswer(t *testing.T) {
	var seen Prompt
	client := &fakeClient{generate: func(model string, p Prompt) (string, error) {
		seen = p
		return " 🔥\n", nil
	}}
	svc, store := newTestService(t, []router.Backend{
		{Name: "a", Provider: "fake", Model: "flash"},
	}, client)

	for i := 0; i < 20; i++ {
		store.Append(history.Entry{ChatID: 5, Role: history.RoleUser, Author: "X", Text: "msg", At: time.Now()})
	}

	emoji, err := svc.React(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "🔥", emoji)
	assert.Len(t, seen.History, reactionHistoryTail)
}

func TestReactEmptyHistory(t *testing.T) {
	client := &fakeClient{generate: func(string, Prompt) (string, error) { return "👍", nil }}
	svc, _ := newTestService(t, []router.Backend{
		{Name: "a", Provider: "fake", Model: "flash"},
	}, client)

	_, err := svc.React(context.Background(), 404)
	assert.Error(t, err)
}

func TestParseEventEndToEnd(t *testing.T) {
	client := &fakeClient{image: func(model, instruction string) (string, error) {
		assert.Contains(t, instruction, "calendar event")
		return "```json\n{\"title\":\"Ёлка\",\"date\":\"2025-12-28\",\"time\":\"11:00\",\"confidence\":0.8}\n```", nil
	}}
	svc, _ := newTestService(t, []router.Backend{
		{Name: "a", Provider: "fake", Model: "flash"},
	}, client)

	ev, err := svc.ParseEvent(context.Background(), []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "Ёлка", ev.Title)
	assert.Equal(t, "11:00", ev.Time)
}

func TestIsQuotaError(t *testing.T) {
	assert.True(t, isQuotaError(errors.New("status code: 429 Too Many Requests")))
	assert.True(t, isQuotaError(errors.New("rpc error: RESOURCE_EXHAUSTED")))
	assert.True(t, isQuotaError(errors.New("You exceeded your current quota")))
	assert.False(t, isQuotaError(errors.New("status code: 500")))
}
