// Package telegram connects the link registry and the leech relay to the
// Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/tglink/internal/download"
	"github.com/memohai/tglink/internal/leech"
	"github.com/memohai/tglink/internal/links"
)

const telegramMaxMessageLength = 4096

// botAPI is the subset of *tgbotapi.BotAPI the client uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Client implements download.Store and leech.Uploader on top of the Bot API,
// plus the few chat operations the bot loop needs.
type Client struct {
	logger *slog.Logger
	api    botAPI
	http   *http.Client
}

var (
	_ download.Store = (*Client)(nil)
	_ leech.Uploader = (*Client)(nil)
)

// NewClient logs in with token. An empty endpoint uses the public Bot API.
func NewClient(log *slog.Logger, token, endpoint string) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("adapter", "telegram"))
	_ = tgbotapi.SetLogger(&slogBotLogger{log: log})
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(strings.TrimSpace(token), endpoint)
	if err != nil {
		log.Error("create bot failed", slog.Any("error", err))
		return nil, err
	}
	log.Info("authorized", slog.String("username", bot.Self.UserName))
	return newClient(log, bot, nil), nil
}

func newClient(log *slog.Logger, api botAPI, client *http.Client) *Client {
	if log == nil {
		log = slog.Default()
	}
	if client == nil {
		// File downloads stream for as long as the HTTP consumer keeps reading.
		client = &http.Client{}
	}
	return &Client{logger: log, api: api, http: client}
}

// Open streams the file behind ref. The Bot API only serves files up to
// 20 MB through getFile; larger files fail here, before anything is written.
func (c *Client) Open(ctx context.Context, ref links.Ref) (download.Object, error) {
	fileID := strings.TrimSpace(ref.FileID)
	if fileID == "" {
		return download.Object{}, errors.New("telegram file id is required")
	}
	fileURL, err := c.api.GetFileDirectURL(fileID)
	if err != nil {
		return download.Object{}, fmt.Errorf("resolve telegram file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return download.Object{}, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return download.Object{}, fmt.Errorf("download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return download.Object{}, fmt.Errorf("download file status: %d", resp.StatusCode)
	}
	size := ref.Size
	if resp.ContentLength > 0 {
		size = resp.ContentLength
	}
	return download.Object{Body: resp.Body, Size: size}, nil
}

// Upload sends up.Reader to the chat in up.Destination as a document. The
// library streams the multipart body through a pipe, so a failing read (a
// cancel, the size guard or ctx) aborts the request.
func (c *Client) Upload(ctx context.Context, up leech.Upload) error {
	chatID, err := parseChatID(up.Destination)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileReader{
		Name:   up.Name,
		Reader: &contextReader{ctx: ctx, r: up.Reader},
	})
	_, err = c.api.Send(doc)
	return err
}

// SendText posts an HTML message and returns its id. replyTo and markup are optional.
func (c *Client) SendText(chatID int64, replyTo int, text string, markup *tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, truncateTelegramText(sanitizeTelegramText(text)))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if replyTo > 0 {
		msg.ReplyToMessageID = replyTo
	}
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditText replaces the text of a previously sent message. "message is not
// modified" is not an error.
func (c *Client) EditText(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, truncateTelegramText(sanitizeTelegramText(text)))
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	edit.ReplyMarkup = markup
	_, err := c.api.Send(edit)
	if err != nil && isTelegramMessageNotModified(err) {
		return nil
	}
	return err
}

// DeleteMessage removes a message the bot sent.
func (c *Client) DeleteMessage(chatID int64, messageID int) error {
	_, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

// AnswerCallback acknowledges a button press with a short toast.
func (c *Client) AnswerCallback(callbackID, text string) error {
	_, err := c.api.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

// contextReader fails reads once ctx is done; the Bot API client has no
// context support of its own.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

func parseChatID(raw string) (int64, error) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram target must be a chat id: %q", raw)
	}
	return chatID, nil
}

func isTelegramMessageNotModified(err error) bool {
	var apiErr tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 400 && strings.Contains(apiErr.Message, "message is not modified")
	}
	return false
}

// sanitizeTelegramText ensures text is valid UTF-8 for the Telegram API.
func sanitizeTelegramText(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}

// truncateTelegramText truncates text to telegramMaxMessageLength on a rune
// boundary, appending "..." when truncation occurs.
func truncateTelegramText(text string) string {
	if len(text) <= telegramMaxMessageLength {
		return text
	}
	const suffix = "..."
	limit := telegramMaxMessageLength - len(suffix)
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit] + suffix
}

// slogBotLogger routes the library's internal logging to slog.
type slogBotLogger struct {
	log *slog.Logger
}

func (l *slogBotLogger) Println(v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l *slogBotLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
