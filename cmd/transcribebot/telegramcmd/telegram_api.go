package telegramcmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/StewartalsopIII/transcribe-telegram/internal/telegramutil"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	defaultAPIEndpoint  = tgbotapi.APIEndpoint
	defaultFileEndpoint = "https://api.telegram.org/file/bot%s/%s"
	defaultMaxFileBytes = 20 * 1024 * 1024
)

var errFileTooLarge = errors.New("telegram file too large")

// ctxHTTPClient binds every SDK request to ctx so shutdown interrupts long polls.
type ctxHTTPClient struct {
	ctx    context.Context
	client *http.Client
}

func (c ctxHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

type telegramAPI struct {
	bot          *tgbotapi.BotAPI
	http         *http.Client
	token        string
	fileEndpoint string
	logger       *slog.Logger
}

// newTelegramAPI authenticates with getMe. ctx bounds the lifetime of every
// request made through the returned client.
func newTelegramAPI(ctx context.Context, httpClient *http.Client, token, apiEndpoint, fileEndpoint string, logger *slog.Logger) (*telegramAPI, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("missing telegram bot token")
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if strings.TrimSpace(apiEndpoint) == "" {
		apiEndpoint = defaultAPIEndpoint
	}
	if strings.TrimSpace(fileEndpoint) == "" {
		fileEndpoint = defaultFileEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, ctxHTTPClient{ctx: ctx, client: httpClient})
	if err != nil {
		return nil, fmt.Errorf("telegram getMe: %w", err)
	}
	return &telegramAPI{
		bot:          bot,
		http:         httpClient,
		token:        token,
		fileEndpoint: fileEndpoint,
		logger:       logger,
	}, nil
}

func (api *telegramAPI) username() string {
	return api.bot.Self.UserName
}

// getUpdates long-polls once and returns the updates plus the next offset.
func (api *telegramAPI) getUpdates(offset int, timeout time.Duration) ([]tgbotapi.Update, int, error) {
	u := tgbotapi.NewUpdate(offset)
	u.Timeout = int(timeout.Seconds())
	if u.Timeout < 1 {
		u.Timeout = 1
	}
	updates, err := api.bot.GetUpdates(u)
	if err != nil {
		return nil, offset, err
	}
	next := offset
	for _, upd := range updates {
		if upd.UpdateID >= next {
			next = upd.UpdateID + 1
		}
	}
	return updates, next, nil
}

func isTelegramPollTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "client.timeout exceeded")
}

func isTelegramMarkdownParseError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		desc := strings.ToLower(apiErr.Message)
		if strings.Contains(desc, "can't parse entities") || strings.Contains(desc, "can't parse entity") {
			return true
		}
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "can't parse entities") || strings.Contains(msg, "can't parse entity")
}

// sendText sends text as plain text, replying to replyTo when it is non-zero.
func (api *telegramAPI) sendText(chatID int64, text string, replyTo int) (int, error) {
	return api.sendWithParseMode(chatID, text, "", replyTo)
}

// sendMarkdownV2 sends text escaped for MarkdownV2 and falls back to plain
// text when Telegram rejects it.
func (api *telegramAPI) sendMarkdownV2(chatID int64, text string, replyTo int) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(empty)"
	}
	id, err := api.sendWithParseMode(chatID, telegramutil.EscapeMarkdownV2(text), tgbotapi.ModeMarkdownV2, replyTo)
	if err == nil {
		return id, nil
	}
	if isTelegramMarkdownParseError(err) {
		api.logger.Debug("telegram_markdown_rejected", "chat_id", chatID, "error", err.Error())
	} else {
		api.logger.Warn("telegram_send_markdown_error", "chat_id", chatID, "error", err.Error())
	}
	return api.sendWithParseMode(chatID, text, "", replyTo)
}

// sendChunked splits text under Telegram's message limit. header is prepended
// to the first chunk only and only the first chunk is sent as a reply.
func (api *telegramAPI) sendChunked(chatID int64, header, text string, replyTo int) error {
	chunks := telegramutil.SplitText(text, telegramutil.MaxMessageRunes)
	if len(chunks) == 0 {
		chunks = []string{"(empty)"}
	}
	for i, chunk := range chunks {
		if i == 0 && header != "" {
			chunk = header + "\n\n" + chunk
		}
		if _, err := api.sendMarkdownV2(chatID, chunk, replyTo); err != nil {
			return err
		}
		replyTo = 0
	}
	return nil
}

func (api *telegramAPI) sendWithParseMode(chatID int64, text, parseMode string, replyTo int) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	msg.DisableWebPagePreview = true
	msg.ReplyToMessageID = replyTo
	sent, err := api.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (api *telegramAPI) deleteMessage(chatID int64, messageID int) error {
	if messageID == 0 {
		return nil
	}
	_, err := api.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

func (api *telegramAPI) sendChatAction(chatID int64, action string) error {
	_, err := api.bot.Request(tgbotapi.NewChatAction(chatID, action))
	return err
}

func (api *telegramAPI) getFile(fileID string) (tgbotapi.File, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return tgbotapi.File{}, fmt.Errorf("missing file_id")
	}
	return api.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
}

// downloadFileTo streams filePath into dstPath. Files over maxBytes fail with
// errFileTooLarge.
func (api *telegramAPI) downloadFileTo(ctx context.Context, filePath, dstPath string, maxBytes int64) (int64, error) {
	filePath = strings.TrimSpace(filePath)
	dstPath = strings.TrimSpace(dstPath)
	if filePath == "" {
		return 0, fmt.Errorf("missing file_path")
	}
	if dstPath == "" {
		return 0, fmt.Errorf("missing dst_path")
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxFileBytes
	}

	url := fmt.Sprintf(api.fileEndpoint, api.token, strings.TrimLeft(filePath, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := api.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("telegram download http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	f, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return n, err
	}
	if n > maxBytes {
		return n, fmt.Errorf("%w (>%d bytes)", errFileTooLarge, maxBytes)
	}
	if err := f.Close(); err != nil {
		return n, err
	}
	return n, nil
}
