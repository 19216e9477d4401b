package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/StewartalsopIII/transcribe-telegram/audio"
	"github.com/StewartalsopIII/transcribe-telegram/internal/configutil"
	"github.com/StewartalsopIII/transcribe-telegram/providers/gemini"
	"github.com/StewartalsopIII/transcribe-telegram/transcriber"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().String("gemini-api-key", "", "Gemini API key.")
	cmd.Flags().String("gemini-model", gemini.DefaultModel, "Gemini model used for transcription.")
	cmd.Flags().String("gemini-endpoint", "", "Gemini API base URL override.")
	cmd.Flags().Duration("gemini-request-timeout", 2*time.Minute, "Per request timeout for Gemini calls.")
	cmd.Flags().String("ffmpeg-path", "ffmpeg", "Path to the ffmpeg binary.")
	cmd.Flags().Duration("max-audio-duration", transcriber.DefaultMaxDuration, "Reject audio longer than this (0 = unlimited).")
}

func maxAudioDuration(cmd *cobra.Command) time.Duration {
	return configutil.FlagOrViperDuration(cmd, "max-audio-duration", "audio.max_duration")
}

func geminiAPIKey(cmd *cobra.Command) string {
	return strings.TrimSpace(configutil.FlagOrViperString(cmd, "gemini-api-key", "gemini.api_key"))
}

// transcriberFromFlags builds the convert+transcribe pipeline. Intermediate
// WAV files go to workDir.
func transcriberFromFlags(ctx context.Context, cmd *cobra.Command, logger *slog.Logger, workDir string) (*transcriber.Transcriber, error) {
	apiKey := geminiAPIKey(cmd)
	if apiKey == "" {
		return nil, fmt.Errorf("missing gemini.api_key (set via --gemini-api-key, GOOGLE_API_KEY or TRANSCRIBEBOT_GEMINI_API_KEY)")
	}

	conv := audio.NewConverter(
		configutil.FlagOrViperString(cmd, "ffmpeg-path", "audio.ffmpeg_path"),
		audio.Format{
			SampleRate: viper.GetInt("audio.sample_rate"),
			Channels:   viper.GetInt("audio.channels"),
		},
		logger,
	)
	if !conv.Available() {
		return nil, fmt.Errorf("%w: install ffmpeg or set audio.ffmpeg_path", audio.ErrConverterNotFound)
	}

	client, err := gemini.New(ctx, gemini.Config{
		APIKey:         apiKey,
		Model:          configutil.FlagOrViperString(cmd, "gemini-model", "gemini.model"),
		Endpoint:       configutil.FlagOrViperString(cmd, "gemini-endpoint", "gemini.endpoint"),
		RequestTimeout: configutil.FlagOrViperDuration(cmd, "gemini-request-timeout", "gemini.request_timeout"),
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("pipeline_ready", "model", client.Model(), "format", fmt.Sprintf("%+v", conv.Format()))
	return transcriber.New(transcriber.Options{
		Client:      client,
		Converter:   conv,
		Model:       client.Model(),
		MaxDuration: maxAudioDuration(cmd),
		WorkDir:     workDir,
		Logger:      logger,
	})
}
