package delivery

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/vstarikov/govorun/internal/history"
	"github.com/vstarikov/govorun/internal/router"
)

// Handler — отладочный API: посмотреть окно истории чата и счётчики
// лимитов без рестарта бота.
type Handler struct {
	store  *history.Store
	router *router.Router
	log    *zap.SugaredLogger
}

func NewHandler(store *history.Store, r *router.Router, log *zap.SugaredLogger) *Handler {
	return &Handler{store: store, router: r, log: log}
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid chat id", http.StatusBadRequest)
		return
	}

	entries := h.store.Context(chatID)
	h.writeJSON(w, map[string]any{
		"chat_id":          chatID,
		"entries":          entries,
		"estimated_tokens": h.store.EstimatedTokens(chatID),
	})
}

func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.router.Snapshot())
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warnw("encode response", "err", err)
	}
}
