package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/StewartalsopIII/transcribe-telegram/audio"
	"github.com/StewartalsopIII/transcribe-telegram/internal/fsstore"
	"github.com/StewartalsopIII/transcribe-telegram/internal/pathutil"
	"github.com/StewartalsopIII/transcribe-telegram/providers/gemini"
	"github.com/StewartalsopIII/transcribe-telegram/transcriber"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Telegram     telegramFileConfig  `yaml:"telegram"`
	Gemini       geminiFileConfig    `yaml:"gemini"`
	Audio        audioFileConfig     `yaml:"audio"`
	FileCacheDir string              `yaml:"file_cache_dir"`
	FileCache    fileCacheFileConfig `yaml:"file_cache"`
	Metrics      metricsFileConfig   `yaml:"metrics"`
	Logging      loggingFileConfig   `yaml:"logging"`
	Trace        bool                `yaml:"trace"`
}

type telegramFileConfig struct {
	BotToken       string   `yaml:"bot_token"`
	AllowedChatIDs []string `yaml:"allowed_chat_ids"`
	PollTimeout    string   `yaml:"poll_timeout"`
	TaskTimeout    string   `yaml:"task_timeout"`
	MaxConcurrency int      `yaml:"max_concurrency"`
	MaxFileBytes   int64    `yaml:"max_file_bytes"`
	APIEndpoint    string   `yaml:"api_endpoint"`
	FileEndpoint   string   `yaml:"file_endpoint"`
}

type geminiFileConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	Endpoint       string `yaml:"endpoint"`
	RequestTimeout string `yaml:"request_timeout"`
}

type audioFileConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	SampleRate  int    `yaml:"sample_rate"`
	Channels    int    `yaml:"channels"`
	MaxDuration string `yaml:"max_duration"`
}

type fileCacheFileConfig struct {
	MaxAge        string `yaml:"max_age"`
	MaxFiles      int    `yaml:"max_files"`
	MaxTotalBytes int64  `yaml:"max_total_bytes"`
}

type metricsFileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type loggingFileConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

func defaultFileConfig(dir string) fileConfig {
	return fileConfig{
		Telegram: telegramFileConfig{
			AllowedChatIDs: []string{},
			PollTimeout:    "30s",
			TaskTimeout:    "5m",
			MaxConcurrency: 3,
			MaxFileBytes:   20 * 1024 * 1024,
			APIEndpoint:    "https://api.telegram.org/bot%s/%s",
			FileEndpoint:   "https://api.telegram.org/file/bot%s/%s",
		},
		Gemini: geminiFileConfig{
			Model:          gemini.DefaultModel,
			RequestTimeout: "2m",
		},
		Audio: audioFileConfig{
			FFmpegPath:  "ffmpeg",
			SampleRate:  audio.DefaultSampleRate,
			Channels:    audio.DefaultChannels,
			MaxDuration: transcriber.DefaultMaxDuration.String(),
		},
		FileCacheDir: filepath.ToSlash(filepath.Join(dir, "cache")),
		FileCache: fileCacheFileConfig{
			MaxAge:        "24h",
			MaxFiles:      200,
			MaxTotalBytes: 256 * 1024 * 1024,
		},
		Metrics: metricsFileConfig{Listen: "127.0.0.1:9464"},
		Logging: loggingFileConfig{Level: "info", Format: "text"},
	}
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default config.yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "~/.config/transcribebot/"
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = args[0]
			}
			dir = pathutil.ExpandHomePath(dir)
			if strings.TrimSpace(dir) == "" {
				return fmt.Errorf("invalid dir")
			}
			dir = filepath.Clean(dir)

			cfgPath := filepath.Join(dir, "config.yaml")
			body, err := yaml.Marshal(defaultFileConfig(dir))
			if err != nil {
				return err
			}
			header := "# Secrets can stay out of this file: TELEGRAM_BOT_TOKEN and GOOGLE_API_KEY are read from the environment.\n"
			err = fsstore.WriteFileAtomic(cfgPath, append([]byte(header), body...), fsstore.FileOptions{DirPerm: 0o755, FilePerm: 0o600, NoReplace: true})
			if errors.Is(err, fsstore.ErrFileExists) {
				return fmt.Errorf("config already exists: %s", cfgPath)
			}
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "initialized %s\n", cfgPath)
			return nil
		},
	}

	return cmd
}
