package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/tglink/internal/leech"
	"github.com/memohai/tglink/internal/links"
)

// BotOptions configures the update loop.
type BotOptions struct {
	PublicURL string
	// TTL is only shown to users; expiry is enforced by the link source.
	TTL          time.Duration
	AllowedUsers []int64
	PollTimeout  int
}

// Bot long-polls updates: files become download links, http(s) URLs become
// leeches into the same chat, and the cancel button or /cancel stops them.
type Bot struct {
	logger  *slog.Logger
	client  *Client
	issuer  links.Issuer
	relay   *leech.Relay
	opts    BotOptions
	allowed map[int64]struct{}
	wg      sync.WaitGroup

	mu        sync.Mutex
	polling   bool
	updatedAt time.Time
}

// NewBot creates a Bot.
func NewBot(log *slog.Logger, client *Client, issuer links.Issuer, relay *leech.Relay, opts BotOptions) *Bot {
	if log == nil {
		log = slog.Default()
	}
	allowed := make(map[int64]struct{}, len(opts.AllowedUsers))
	for _, id := range opts.AllowedUsers {
		allowed[id] = struct{}{}
	}
	return &Bot{
		logger:  log.With(slog.String("service", "bot")),
		client:  client,
		issuer:  issuer,
		relay:   relay,
		opts:    opts,
		allowed: allowed,
	}
}

// Run polls until ctx is cancelled, then waits for running leeches, which
// abort with ctx, to release their sessions.
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.opts.PollTimeout
	updates := b.client.api.GetUpdatesChan(updateConfig)
	b.logger.Info("polling updates")
	b.setPolling(true)

	defer b.wg.Wait()
	defer b.setPolling(false)
	for {
		select {
		case <-ctx.Done():
			b.client.api.StopReceivingUpdates()
			// Drain so the library's polling goroutine can deliver its last
			// batch and close the channel; otherwise the in-flight getUpdates
			// call keeps the session alive and a restart hits a 409 conflict.
			for range updates {
			}
			b.logger.Info("polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.logger.Info("updates channel closed")
				return nil
			}
			b.touch()
			b.HandleUpdate(ctx, update)
		}
	}
}

// PollingStatus reports whether Run is polling and when the last update (or
// state change) happened.
func (b *Bot) PollingStatus() (bool, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.polling, b.updatedAt
}

func (b *Bot) setPolling(running bool) {
	b.mu.Lock()
	b.polling = running
	b.updatedAt = time.Now()
	b.mu.Unlock()
}

func (b *Bot) touch() {
	b.mu.Lock()
	b.updatedAt = time.Now()
	b.mu.Unlock()
}

// HandleUpdate dispatches one update. Leeches run in their own goroutine.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
		return
	}
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	if !b.isAllowed(msg.From) {
		b.logger.Warn("sender not allowed", slog.Int64("chat_id", msg.Chat.ID), slog.Int64("user_id", senderID(msg.From)))
		b.reply(msg, "⛔ You are not allowed to use this bot.")
		return
	}
	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}
	if ref, ok := fileRef(msg); ok {
		b.handleFile(msg, ref)
		return
	}
	text := strings.TrimSpace(msg.Text)
	if isLeechURL(text) {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.handleLeech(ctx, msg, text)
		}()
		return
	}
	b.reply(msg, helpText)
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "cancel":
		if b.relay.Cancel(sessionKey(msg.Chat.ID)) {
			b.reply(msg, "🛑 Cancelling the running upload...")
			return
		}
		b.reply(msg, "Nothing to cancel.")
	default:
		b.reply(msg, helpText)
	}
}

func (b *Bot) handleCallback(cq *tgbotapi.CallbackQuery) {
	text := ""
	switch {
	case cq.Data != cancelCallbackData || cq.Message == nil || cq.Message.Chat == nil:
	case !b.isAllowed(cq.From):
		text = "Not allowed."
	case b.relay.Cancel(sessionKey(cq.Message.Chat.ID)):
		text = "Cancelling..."
	default:
		text = "Nothing to cancel."
	}
	if err := b.client.AnswerCallback(cq.ID, text); err != nil {
		b.logger.Debug("answer callback failed", slog.Any("error", err))
	}
}

func (b *Bot) handleFile(msg *tgbotapi.Message, ref links.Ref) {
	code, err := b.issuer.Issue(ref)
	if err != nil {
		b.logger.Error("issue link failed", slog.String("file_id", ref.FileID), slog.Any("error", err))
		b.reply(msg, "❌ Could not create a link for this file.")
		return
	}
	b.logger.Info("link issued",
		slog.Int64("chat_id", msg.Chat.ID),
		slog.String("name", ref.Name),
		slog.Int64("size", ref.Size),
	)
	b.reply(msg, linkText(ref, linkURL(b.opts.PublicURL, code, ref.Name), b.opts.TTL))
}

func (b *Bot) handleLeech(ctx context.Context, msg *tgbotapi.Message, rawURL string) {
	chatID := msg.Chat.ID
	key := sessionKey(chatID)
	if b.relay.Sessions().Active(key) {
		b.reply(msg, failureText(leech.ErrBusy))
		return
	}
	statusID, err := b.client.SendText(chatID, msg.MessageID, "🔗 Connecting...", cancelKeyboard())
	if err != nil {
		b.logger.Warn("send status failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
	reporter := leech.ReporterFunc(func(_ context.Context, p leech.Progress) error {
		if statusID == 0 {
			return nil
		}
		return b.client.EditText(chatID, statusID, progressText(p), cancelKeyboard())
	})

	res, err := b.relay.Leech(ctx, leech.Request{
		SessionKey:  key,
		URL:         rawURL,
		Destination: key,
		Reporter:    reporter,
	})
	switch {
	case err == nil:
		b.finishStatus(msg, statusID, completedText(res))
		if statusID != 0 {
			if err := b.client.DeleteMessage(chatID, statusID); err != nil {
				b.logger.Debug("delete status failed", slog.Any("error", err))
			}
		}
	case errors.Is(err, leech.ErrCancelled):
		b.finishStatus(msg, statusID, cancelledText(res))
	default:
		b.finishStatus(msg, statusID, failureText(err))
	}
}

// finishStatus puts the final text on the status message, or replies when
// there is none.
func (b *Bot) finishStatus(msg *tgbotapi.Message, statusID int, text string) {
	if statusID == 0 {
		b.reply(msg, text)
		return
	}
	if err := b.client.EditText(msg.Chat.ID, statusID, text, nil); err != nil {
		b.logger.Warn("edit status failed", slog.Int64("chat_id", msg.Chat.ID), slog.Any("error", err))
	}
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	if _, err := b.client.SendText(msg.Chat.ID, msg.MessageID, text, nil); err != nil {
		b.logger.Warn("send reply failed", slog.Int64("chat_id", msg.Chat.ID), slog.Any("error", err))
	}
}

func (b *Bot) isAllowed(user *tgbotapi.User) bool {
	if len(b.allowed) == 0 {
		return true
	}
	if user == nil {
		return false
	}
	_, ok := b.allowed[user.ID]
	return ok
}

func senderID(user *tgbotapi.User) int64 {
	if user == nil {
		return 0
	}
	return user.ID
}

func sessionKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func isLeechURL(text string) bool {
	if strings.ContainsAny(text, " \n\t") {
		return false
	}
	lower := strings.ToLower(text)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
