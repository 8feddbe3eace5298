package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/vstarikov/govorun/internal/ai"
	"github.com/vstarikov/govorun/internal/config"
	"github.com/vstarikov/govorun/internal/history"
	"github.com/vstarikov/govorun/internal/notificator"
	"github.com/vstarikov/govorun/internal/router"
	"github.com/vstarikov/govorun/internal/storage"
)

type BotApp struct {
	bot     *tgbotapi.BotAPI
	cfg     *config.Config
	ai      *ai.Service
	store   *history.Store
	archive storage.MediaArchive
	notify  notificator.Notificator

	aliases []string
	allowed map[string]bool
}

func NewBotApp(
	cfg *config.Config,
	aiService *ai.Service,
	store *history.Store,
	archive storage.MediaArchive,
	notify notificator.Notificator,
) (*BotApp, error) {

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	bot.Debug = cfg.DebugMode

	allowed := make(map[string]bool, len(cfg.AllowedChatIDs))
	for _, id := range cfg.AllowedChatIDs {
		if id = strings.TrimSpace(id); id != "" {
			allowed[id] = true
		}
	}

	aliases := make([]string, 0, len(cfg.BotAliases)+1)
	for _, a := range cfg.BotAliases {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			aliases = append(aliases, a)
		}
	}
	if bot.Self.UserName != "" {
		aliases = append(aliases, strings.ToLower(bot.Self.UserName))
	}

	return &BotApp{
		bot:     bot,
		cfg:     cfg,
		ai:      aiService,
		store:   store,
		archive: archive,
		notify:  notify,
		aliases: aliases,
		allowed: allowed,
	}, nil
}

func (app *BotApp) Bot() *tgbotapi.BotAPI { return app.bot }

// Run — главный цикл получения апдейтов. Каждый апдейт обрабатывается
// в своей горутине: Store и Router рассчитаны на конкурентный доступ.
func (app *BotApp) Run() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := app.bot.GetUpdatesChan(u)
	log.Printf("[bot_loop] started username=@%s", app.bot.Self.UserName)

	for update := range updates {
		go app.routeUpdate(context.Background(), update)
	}
}

func (app *BotApp) routeUpdate(ctx context.Context, update tgbotapi.Update) {
	// интересуют только обычные сообщения от людей
	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return
	}
	if !app.isAllowed(msg) {
		return
	}

	switch {
	case msg.IsCommand():
		app.handleCommand(msg)
	case msg.Voice != nil:
		if app.cfg.EnableMessageHandling {
			app.handleVoice(ctx, msg)
		}
	case len(msg.Photo) > 0:
		app.handlePhoto(ctx, msg)
	case msg.Text != "":
		if app.cfg.EnableMessageHandling {
			app.handleText(ctx, msg)
		}
	}
}

// isAllowed — доступ по спискам чатов/пользователей. Пустой список
// закрывает бота целиком.
func (app *BotApp) isAllowed(msg *tgbotapi.Message) bool {
	if len(app.allowed) == 0 {
		return false
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	userID := strconv.FormatInt(msg.From.ID, 10)
	if app.allowed[chatID] || app.allowed[userID] {
		return true
	}
	log.Printf("[auth] unauthorized access attempt by user %s in chat %s", userID, chatID)
	return false
}

func (app *BotApp) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "hi", "start":
		if app.cfg.EnableHiCommand {
			app.reply(msg, "Привет! Я бот-расшифровщик голосовых. Упомяни меня — отвечу по контексту чата.")
		}
	}
}

func (app *BotApp) reply(msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	if _, err := app.bot.Send(out); err != nil {
		log.Printf("[reply] send fail chat=%d err=%v", msg.Chat.ID, err)
	}
}

func (app *BotApp) typing(chatID int64) {
	if _, err := app.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		log.Printf("[typing] fail chat=%d err=%v", chatID, err)
	}
}

// replyDegraded переводит ошибку AI-слоя в ответ пользователю:
// исчерпание лимитов — штатный режим без уведомления админа.
func (app *BotApp) replyDegraded(ctx context.Context, msg *tgbotapi.Message, err error, tag string) {
	if errors.Is(err, router.ErrNoBackendAvailable) {
		log.Printf("[%s] all backends exhausted chat=%d", tag, msg.Chat.ID)
		app.reply(msg, "😴 Все модели сейчас заняты, попробуй чуть позже.")
		return
	}

	log.Printf("[%s] ai fail chat=%d err=%v", tag, msg.Chat.ID, err)
	app.notify.Notify(ctx, err, fmt.Sprintf("Ошибка (%s) в чате %d", tag, msg.Chat.ID))
	app.reply(msg, "⚠️ Ошибка при обработке запроса.")
}

func (app *BotApp) downloadFile(fileID string) ([]byte, error) {
	file, err := app.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	resp, err := http.Get(file.Link(app.bot.Token))
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// archiveMedia сохраняет исходник в S3. Зовётся из горутины: архив не
// должен тормозить ответ пользователю.
func (app *BotApp) archiveMedia(ext string, data []byte, contentType string) {
	key := time.Now().Format("2006/01/02") + "/" + uuid.NewString() + ext
	if err := app.archive.Save(context.Background(), key, data, contentType); err != nil {
		log.Printf("[archive] save fail key=%s err=%v", key, err)
		return
	}
	log.Printf("[archive] saved %s (%s)", key, humanize.Bytes(uint64(len(data))))
}

func authorName(u *tgbotapi.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.UserName
}
