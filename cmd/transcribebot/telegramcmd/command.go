package telegramcmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/StewartalsopIII/transcribe-telegram/internal/configutil"
	"github.com/StewartalsopIII/transcribe-telegram/internal/logutil"
	"github.com/StewartalsopIII/transcribe-telegram/internal/metrics"
	"github.com/StewartalsopIII/transcribe-telegram/internal/pathutil"
	"github.com/StewartalsopIII/transcribe-telegram/internal/telegramutil"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

type Dependencies struct {
	LoggerFromViper func() (*slog.Logger, error)
	// AddPipelineFlags registers the model and audio flags NewTranscriber reads.
	AddPipelineFlags func(cmd *cobra.Command)
	NewTranscriber   func(ctx context.Context, cmd *cobra.Command, logger *slog.Logger, workDir string) (Transcriber, error)
	// MaxAudioDuration reads the audio length limit from the pipeline flags.
	MaxAudioDuration func(cmd *cobra.Command) time.Duration
	// Secrets lists credentials that must never reach chat replies or logs.
	Secrets func(cmd *cobra.Command) []string
	Version string
}

func New(deps Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot that transcribes voice and audio messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd, deps)
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().StringArray("telegram-allowed-chat-id", nil, "Allowed chat id(s). If empty, allows all.")
	cmd.Flags().Duration("telegram-poll-timeout", 30*time.Second, "Long polling timeout for getUpdates.")
	cmd.Flags().Duration("telegram-task-timeout", 5*time.Minute, "Per-message processing timeout.")
	cmd.Flags().Int("telegram-max-concurrency", 3, "Max number of audio messages processed concurrently across chats.")
	cmd.Flags().Int64("telegram-max-file-bytes", 20*1024*1024, "Max size of a downloaded voice or audio file.")
	cmd.Flags().String("file-cache-dir", "~/.cache/transcribebot", "Directory for downloaded and converted audio.")
	cmd.Flags().Bool("metrics", false, "Serve /metrics and /health over HTTP.")
	cmd.Flags().String("metrics-listen", "127.0.0.1:9464", "Listen address for the metrics server.")
	if deps.AddPipelineFlags != nil {
		deps.AddPipelineFlags(cmd)
	}

	return cmd
}

func runBot(cmd *cobra.Command, deps Dependencies) error {
	token := strings.TrimSpace(configutil.FlagOrViperString(cmd, "telegram-bot-token", "telegram.bot_token"))
	if token == "" {
		return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token, TELEGRAM_BOT_TOKEN or TRANSCRIBEBOT_TELEGRAM_BOT_TOKEN)")
	}

	allowed, err := parseAllowedChatIDs(configutil.FlagOrViperStringArray(cmd, "telegram-allowed-chat-id", "telegram.allowed_chat_ids"))
	if err != nil {
		return err
	}

	logger, err := deps.LoggerFromViper()
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	var secrets []string
	if deps.Secrets != nil {
		secrets = deps.Secrets(cmd)
	}
	_ = tgbotapi.SetLogger(logutil.SDKLogger{
		Logger:    logger,
		Component: "telegram",
		Secrets:   append([]string{token}, secrets...),
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cacheRoot := pathutil.ExpandHomePath(configutil.FlagOrViperString(cmd, "file-cache-dir", "file_cache_dir"))
	cacheDir, err := telegramutil.PrepareCacheDir(cacheRoot, "telegram", telegramutil.CleanupPolicy{
		MaxAge:        viper.GetDuration("file_cache.max_age"),
		MaxFiles:      viper.GetInt("file_cache.max_files"),
		MaxTotalBytes: viper.GetInt64("file_cache.max_total_bytes"),
	})
	if err != nil {
		if cacheDir == "" {
			return fmt.Errorf("file cache: %w", err)
		}
		logger.Warn("file_cache_cleanup_error", "dir", cacheDir, "error", err.Error())
	}

	tr, err := deps.NewTranscriber(ctx, cmd, logger, cacheDir)
	if err != nil {
		return err
	}

	var maxAudio time.Duration
	if deps.MaxAudioDuration != nil {
		maxAudio = deps.MaxAudioDuration(cmd)
	}

	// The bot's HTTP client is bound to gctx so a failing metrics server
	// also interrupts an in-flight long poll.
	g, gctx := errgroup.WithContext(ctx)
	m := metrics.New()
	bot, err := NewBot(gctx, Config{
		Token:            token,
		APIEndpoint:      viper.GetString("telegram.api_endpoint"),
		FileEndpoint:     viper.GetString("telegram.file_endpoint"),
		AllowedChatIDs:   allowed,
		PollTimeout:      configutil.FlagOrViperDuration(cmd, "telegram-poll-timeout", "telegram.poll_timeout"),
		TaskTimeout:      configutil.FlagOrViperDuration(cmd, "telegram-task-timeout", "telegram.task_timeout"),
		MaxConcurrency:   configutil.FlagOrViperInt(cmd, "telegram-max-concurrency", "telegram.max_concurrency"),
		MaxFileBytes:     configutil.FlagOrViperInt64(cmd, "telegram-max-file-bytes", "telegram.max_file_bytes"),
		MaxAudioDuration: maxAudio,
		CacheDir:         cacheDir,
		Secrets:          secrets,
	}, tr, m, logger)
	if err != nil {
		return err
	}

	g.Go(func() error {
		return bot.Run(gctx)
	})
	if configutil.FlagOrViperBool(cmd, "metrics", "metrics.enabled") {
		addr := configutil.FlagOrViperString(cmd, "metrics-listen", "metrics.listen")
		handler := m.Handler(deps.Version, time.Now())
		g.Go(func() error {
			return metrics.Serve(gctx, addr, handler, logger)
		})
	}
	return g.Wait()
}

func parseAllowedChatIDs(raw []string) (map[int64]bool, error) {
	allowed := make(map[int64]bool)
	for _, s := range configutil.TrimmedNonEmpty(raw) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram.allowed_chat_ids entry %q: %w", s, err)
		}
		allowed[id] = true
	}
	return allowed, nil
}
