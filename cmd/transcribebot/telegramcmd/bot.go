package telegramcmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/StewartalsopIII/transcribe-telegram/audio"
	"github.com/StewartalsopIII/transcribe-telegram/internal/channelruntime/worker"
	"github.com/StewartalsopIII/transcribe-telegram/internal/metrics"
	"github.com/StewartalsopIII/transcribe-telegram/internal/outputfmt"
	"github.com/StewartalsopIII/transcribe-telegram/internal/retryutil"
	"github.com/StewartalsopIII/transcribe-telegram/transcriber"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

const typingInterval = 4 * time.Second

// Transcriber turns a local audio file into text.
type Transcriber interface {
	ProcessFile(ctx context.Context, path string) (transcriber.Transcript, error)
}

type Config struct {
	Token        string
	APIEndpoint  string
	FileEndpoint string
	// AllowedChatIDs restricts the bot to these chats. Empty allows every chat.
	AllowedChatIDs map[int64]bool
	PollTimeout    time.Duration
	TaskTimeout    time.Duration
	MaxConcurrency int
	MaxFileBytes   int64
	// MaxAudioDuration rejects audio whose reported duration is longer, before
	// it is downloaded. Zero disables the check.
	MaxAudioDuration time.Duration
	// CacheDir receives downloads. It must exist.
	CacheDir   string
	HTTPClient *http.Client
	// Secrets are scrubbed from error text shown to users.
	Secrets []string
}

type audioJob struct {
	chatID    int64
	messageID int
	fileID    string
	kind      string
	duration  int
}

type Bot struct {
	cfg         Config
	api         *telegramAPI
	transcriber Transcriber
	metrics     *metrics.Metrics
	logger      *slog.Logger
	secrets     []string
	typingEvery time.Duration
	retry       retryutil.Policy
}

// NewBot validates cfg and authenticates with Telegram. ctx bounds every
// Telegram request the bot makes.
func NewBot(ctx context.Context, cfg Config, tr Transcriber, m *metrics.Metrics, logger *slog.Logger) (*Bot, error) {
	if tr == nil {
		return nil, fmt.Errorf("missing transcriber")
	}
	if strings.TrimSpace(cfg.CacheDir) == "" {
		return nil, fmt.Errorf("missing cache dir")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 5 * time.Minute
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 3
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = defaultMaxFileBytes
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.PollTimeout + 30*time.Second}
	}
	api, err := newTelegramAPI(ctx, httpClient, cfg.Token, cfg.APIEndpoint, cfg.FileEndpoint, logger)
	if err != nil {
		return nil, err
	}
	secrets := append([]string{cfg.Token}, cfg.Secrets...)
	return &Bot{
		cfg:         cfg,
		api:         api,
		transcriber: tr,
		metrics:     m,
		logger:      logger,
		secrets:     secrets,
		typingEvery: typingInterval,
	}, nil
}

// Run long-polls for updates until ctx is done. Audio jobs run on per-chat
// workers; Run waits for them before returning.
func (b *Bot) Run(ctx context.Context) error {
	pool := worker.NewPool[int64, audioJob](ctx, worker.PoolOptions[audioJob]{
		MaxConcurrency: b.cfg.MaxConcurrency,
		Handle:         b.handleAudio,
	})
	defer pool.Wait()

	b.logger.Info("telegram_start",
		"bot", b.api.username(),
		"poll_timeout", b.cfg.PollTimeout.String(),
		"task_timeout", b.cfg.TaskTimeout.String(),
		"max_concurrency", b.cfg.MaxConcurrency,
		"allowed_chats", len(b.cfg.AllowedChatIDs),
	)

	offset := 0
	for {
		updates, next, err := b.api.getUpdates(offset, b.cfg.PollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				b.logger.Info("telegram_stop", "reason", "context_canceled")
				return nil
			}
			if isTelegramPollTimeoutError(err) {
				b.logger.Debug("telegram_get_updates_timeout", "error", err.Error())
			} else {
				b.metrics.RecordPollError()
				b.logger.Warn("telegram_get_updates_error", "error", outputfmt.ScrubSecrets(err.Error(), b.secrets...))
			}
			select {
			case <-ctx.Done():
				b.logger.Info("telegram_stop", "reason", "context_canceled")
				return nil
			case <-time.After(1 * time.Second):
			}
			continue
		}
		offset = next
		for _, u := range updates {
			b.metrics.RecordUpdate()
			b.dispatch(ctx, pool, u)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, pool *worker.Pool[int64, audioJob], u tgbotapi.Update) {
	msg := u.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if cmdWord, _ := splitCommand(msg.Text); normalizeSlashCommand(cmdWord) != "" {
		b.handleCommand(msg, normalizeSlashCommand(cmdWord))
		return
	}

	job, ok := audioJobFromMessage(msg)
	if !ok {
		b.logger.Debug("telegram_message_ignored", "chat_id", chatID, "message_id", msg.MessageID)
		return
	}
	if !b.allowed(chatID) {
		b.rejectUnauthorized(chatID)
		return
	}
	if err := pool.Enqueue(ctx, chatID, job); err != nil {
		b.logger.Warn("telegram_enqueue_error", "chat_id", chatID, "message_id", msg.MessageID, "error", err.Error())
	}
}

func audioJobFromMessage(msg *tgbotapi.Message) (audioJob, bool) {
	job := audioJob{chatID: msg.Chat.ID, messageID: msg.MessageID}
	switch {
	case msg.Voice != nil && strings.TrimSpace(msg.Voice.FileID) != "":
		job.kind = "voice"
		job.fileID = msg.Voice.FileID
		job.duration = msg.Voice.Duration
	case msg.Audio != nil && strings.TrimSpace(msg.Audio.FileID) != "":
		job.kind = "audio"
		job.fileID = msg.Audio.FileID
		job.duration = msg.Audio.Duration
	default:
		return audioJob{}, false
	}
	return job, true
}

func (b *Bot) allowed(chatID int64) bool {
	return len(b.cfg.AllowedChatIDs) == 0 || b.cfg.AllowedChatIDs[chatID]
}

func (b *Bot) rejectUnauthorized(chatID int64) {
	b.metrics.RecordUnauthorized()
	b.logger.Warn("telegram_unauthorized_chat", "chat_id", chatID)
	if _, err := b.api.sendText(chatID, unauthorizedText, 0); err != nil {
		b.logger.Warn("telegram_send_error", "chat_id", chatID, "error", b.displayError(err))
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message, cmd string) {
	chatID := msg.Chat.ID
	var reply string
	switch cmd {
	case "/id":
		reply = chatIDText(chatID, msg.Chat.Type)
	case "/start", "/help":
		if !b.allowed(chatID) {
			b.rejectUnauthorized(chatID)
			return
		}
		reply = welcomeText
		if cmd == "/help" {
			reply = helpText
		}
	default:
		b.logger.Debug("telegram_unknown_command", "chat_id", chatID, "command", cmd)
		return
	}
	b.metrics.RecordCommand(strings.TrimPrefix(cmd, "/"))
	b.logger.Info("telegram_command", "chat_id", chatID, "command", cmd)
	if _, err := b.api.sendText(chatID, reply, 0); err != nil {
		b.logger.Warn("telegram_send_error", "chat_id", chatID, "command", cmd, "error", b.displayError(err))
	}
}

func (b *Bot) handleAudio(ctx context.Context, job audioJob) {
	jobID := uuid.NewString()
	logger := b.logger.With("job_id", jobID, "chat_id", job.chatID, "message_id", job.messageID, "kind", job.kind)
	finish := b.metrics.JobStarted()
	start := time.Now()
	logger.Info("telegram_job_start", "audio_sec", job.duration)

	processingID, err := b.api.sendText(job.chatID, processingText, job.messageID)
	if err != nil {
		logger.Warn("telegram_send_processing_error", "error", b.displayError(err))
	}

	stopTyping := b.startTyping(ctx, job.chatID)
	text, outcome, err := b.transcribeJob(ctx, logger, jobID, job)
	stopTyping()

	if err != nil {
		finish(outcome)
		logger.Warn("telegram_job_error", "outcome", outcome, "error", b.displayError(err), "elapsed", time.Since(start).String())
		if ctx.Err() != nil {
			return
		}
		if _, sendErr := b.api.sendText(job.chatID, errorReplyPrefix+b.displayError(err), job.messageID); sendErr != nil {
			logger.Warn("telegram_send_error", "error", b.displayError(sendErr))
		}
		b.deleteProcessing(ctx, logger, job.chatID, processingID)
		return
	}

	if err := b.api.sendChunked(job.chatID, transcriptHeader, text, job.messageID); err != nil {
		finish(metrics.OutcomeReplyFail)
		logger.Warn("telegram_send_transcript_error", "error", b.displayError(err))
		if ctx.Err() == nil {
			if _, sendErr := b.api.sendText(job.chatID, errorReplyPrefix+b.displayError(err), job.messageID); sendErr != nil {
				logger.Warn("telegram_send_error", "error", b.displayError(sendErr))
			}
		}
		b.deleteProcessing(ctx, logger, job.chatID, processingID)
		return
	}
	finish(metrics.OutcomeOK)
	b.deleteProcessing(ctx, logger, job.chatID, processingID)
	logger.Info("telegram_job_done", "chars", len([]rune(text)), "elapsed", time.Since(start).String())
}

// transcribeJob downloads the job's file and runs it through the transcriber.
// The returned outcome labels the job for metrics.
func (b *Bot) transcribeJob(ctx context.Context, logger *slog.Logger, jobID string, job audioJob) (string, string, error) {
	jobCtx, cancel := context.WithTimeout(ctx, b.cfg.TaskTimeout)
	defer cancel()

	if limit := b.cfg.MaxAudioDuration; limit > 0 && job.duration > 0 {
		if d := time.Duration(job.duration) * time.Second; d > limit {
			return "", metrics.OutcomeTooLong, fmt.Errorf("%w: %s > %s", transcriber.ErrAudioTooLong, d, limit)
		}
	}

	file, err := b.api.getFile(job.fileID)
	if err != nil {
		return "", metrics.OutcomeDownloadFail, fmt.Errorf("get file: %w", err)
	}
	if size := int64(file.FileSize); size > b.cfg.MaxFileBytes {
		return "", metrics.OutcomeDownloadFail, fmt.Errorf("%w (%d bytes, limit %d)", errFileTooLarge, size, b.cfg.MaxFileBytes)
	}

	ext := strings.ToLower(filepath.Ext(file.FilePath))
	if ext == "" {
		ext = ".bin"
	}
	dst := filepath.Join(b.cfg.CacheDir, "tg_"+jobID+ext)
	defer func() {
		if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("telegram_cleanup_error", "path", dst, "error", err.Error())
		}
	}()

	n, err := b.api.downloadFileTo(jobCtx, file.FilePath, dst, b.cfg.MaxFileBytes)
	if err != nil {
		return "", classifyOutcome(jobCtx, err, metrics.OutcomeDownloadFail), fmt.Errorf("download: %w", err)
	}
	b.metrics.RecordDownload(n)
	logger.Debug("telegram_file_downloaded", "bytes", n, "file_path", file.FilePath)

	tr, err := b.transcriber.ProcessFile(jobCtx, dst)
	if err != nil {
		fallback := metrics.OutcomeModelFail
		if stage := transcriber.StageOf(err); stage == transcriber.StageConvert || stage == transcriber.StageRead {
			fallback = metrics.OutcomeConvertFail
		}
		return "", classifyOutcome(jobCtx, err, fallback), err
	}
	b.metrics.RecordTranscript(tr.ConvertDuration, tr.ModelDuration, tr.Audio.Duration(), tr.Usage.InputTokens, tr.Usage.OutputTokens)
	logger.Info("telegram_job_transcribed",
		"model", tr.Model,
		"audio_sec", tr.Audio.Duration().Seconds(),
		"convert", tr.ConvertDuration.String(),
		"model_call", tr.ModelDuration.String(),
		"input_tokens", tr.Usage.InputTokens,
		"output_tokens", tr.Usage.OutputTokens,
	)
	return tr.Text, metrics.OutcomeOK, nil
}

func classifyOutcome(ctx context.Context, err error, fallback string) string {
	switch {
	case errors.Is(err, transcriber.ErrAudioTooLong):
		return metrics.OutcomeTooLong
	case errors.Is(err, audio.ErrEmptyAudio), errors.Is(err, audio.ErrConverterNotFound):
		return metrics.OutcomeConvertFail
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return metrics.OutcomeTimeout
	}
	return fallback
}

// deleteProcessing removes the "processing" notice, retrying in the background
// if the first attempt fails.
func (b *Bot) deleteProcessing(ctx context.Context, logger *slog.Logger, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	err := b.api.deleteMessage(chatID, messageID)
	if err == nil {
		return
	}
	logger.Warn("telegram_delete_message_error", "processing_message_id", messageID, "error", b.displayError(err))
	retryutil.AsyncRetry(ctx, logger, "telegram_delete_message", b.retry, func(context.Context) error {
		return b.api.deleteMessage(chatID, messageID)
	})
}

// startTyping shows a typing indicator until the returned func is called.
func (b *Bot) startTyping(ctx context.Context, chatID int64) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(b.typingEvery)
		defer ticker.Stop()
		for {
			if err := b.api.sendChatAction(chatID, tgbotapi.ChatTyping); err != nil && ctx.Err() == nil {
				b.logger.Debug("telegram_chat_action_error", "chat_id", chatID, "error", b.displayError(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (b *Bot) displayError(err error) string {
	return outputfmt.FormatErrorForDisplay(err, b.secrets...)
}
