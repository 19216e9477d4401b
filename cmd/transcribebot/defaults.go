package main

import (
	"time"

	"github.com/StewartalsopIII/transcribe-telegram/audio"
	"github.com/StewartalsopIII/transcribe-telegram/providers/gemini"
	"github.com/StewartalsopIII/transcribe-telegram/transcriber"
	"github.com/spf13/viper"
)

func initViperDefaults() {
	// Global
	viper.SetDefault("file_cache_dir", "~/.cache/transcribebot")
	viper.SetDefault("file_cache.max_age", 24*time.Hour)
	viper.SetDefault("file_cache.max_files", 200)
	viper.SetDefault("file_cache.max_total_bytes", int64(256*1024*1024))

	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.allowed_chat_ids", []string{})
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.task_timeout", 5*time.Minute)
	viper.SetDefault("telegram.max_concurrency", 3)
	viper.SetDefault("telegram.max_file_bytes", int64(20*1024*1024))
	viper.SetDefault("telegram.api_endpoint", "https://api.telegram.org/bot%s/%s")
	viper.SetDefault("telegram.file_endpoint", "https://api.telegram.org/file/bot%s/%s")

	// Gemini
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", gemini.DefaultModel)
	viper.SetDefault("gemini.endpoint", "")
	viper.SetDefault("gemini.request_timeout", 2*time.Minute)

	// Audio
	viper.SetDefault("audio.ffmpeg_path", "ffmpeg")
	viper.SetDefault("audio.sample_rate", audio.DefaultSampleRate)
	viper.SetDefault("audio.channels", audio.DefaultChannels)
	viper.SetDefault("audio.max_duration", transcriber.DefaultMaxDuration)

	// Metrics
	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen", "127.0.0.1:9464")

	// Logging
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
	viper.SetDefault("trace", false)
}
