package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/StewartalsopIII/transcribe-telegram/internal/logutil"
	"github.com/spf13/cobra"
)

type transcribeOutput struct {
	File         string  `json:"file"`
	Model        string  `json:"model"`
	AudioSeconds float64 `json:"audio_seconds"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Text         string  `json:"text"`
}

func newTranscribeCmd() *cobra.Command {
	var outputJSON bool
	cmd := &cobra.Command{
		Use:   "transcribe <file>",
		Short: "Transcribe a local audio file without Telegram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(args[0])
			if _, err := os.Stat(path); err != nil {
				return err
			}

			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}

			workDir, err := os.MkdirTemp("", "transcribebot-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(workDir)

			tr, err := transcriberFromFlags(cmd.Context(), cmd, logger, workDir)
			if err != nil {
				return err
			}
			res, err := tr.ProcessFile(cmd.Context(), path)
			if err != nil {
				return err
			}
			logger.Info("transcribe_done",
				"file", path,
				"model", res.Model,
				"audio_sec", res.Audio.Duration().Seconds(),
				"convert", res.ConvertDuration.String(),
				"model_call", res.ModelDuration.String(),
			)

			out := cmd.OutOrStdout()
			if outputJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(transcribeOutput{
					File:         path,
					Model:        res.Model,
					AudioSeconds: res.Audio.Duration().Seconds(),
					InputTokens:  res.Usage.InputTokens,
					OutputTokens: res.Usage.OutputTokens,
					Text:         res.Text,
				})
			}
			_, err = fmt.Fprintln(out, res.Text)
			return err
		},
	}
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print the result as JSON.")
	addPipelineFlags(cmd)
	return cmd
}
