package main

import (
	"context"
	"log/slog"

	"github.com/StewartalsopIII/transcribe-telegram/cmd/transcribebot/telegramcmd"
	"github.com/StewartalsopIII/transcribe-telegram/internal/logutil"
	"github.com/spf13/cobra"
)

func newBotCmd() *cobra.Command {
	return telegramcmd.New(telegramcmd.Dependencies{
		LoggerFromViper:  logutil.LoggerFromViper,
		AddPipelineFlags: addPipelineFlags,
		MaxAudioDuration: maxAudioDuration,
		NewTranscriber: func(ctx context.Context, cmd *cobra.Command, logger *slog.Logger, workDir string) (telegramcmd.Transcriber, error) {
			return transcriberFromFlags(ctx, cmd, logger, workDir)
		},
		Secrets: func(cmd *cobra.Command) []string {
			return []string{geminiAPIKey(cmd)}
		},
		Version: version,
	})
}
