package transcriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/StewartalsopIII/transcribe-telegram/audio"
	"github.com/StewartalsopIII/transcribe-telegram/llm"
	"github.com/google/uuid"
)

const DefaultPrompt = `Please transcribe this audio.

If the audio is in English:
- Provide ONLY the transcription, nothing else

If the audio is NOT in English:
Original: [transcription in original language]
Translation: [English translation]`

// DefaultMaxDuration keeps the inline WAV under the model's request size limit
// at the default 16 kHz mono format.
const DefaultMaxDuration = 10 * time.Minute

var ErrAudioTooLong = errors.New("audio is too long")

// Stage names the pipeline step an error came from.
type Stage string

const (
	StageConvert Stage = "convert audio"
	StageRead    Stage = "read wav"
	StageModel   Stage = "transcribe"
)

type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return string(e.Stage) + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// StageOf reports the stage err failed in, or "" if err did not come from ProcessFile.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

type Converter interface {
	ToWAV(ctx context.Context, srcPath, dstPath string) (audio.Info, error)
}

type Options struct {
	Client    llm.Client
	Converter Converter
	Model     string
	// Prompt replaces DefaultPrompt when set.
	Prompt string
	// MaxDuration rejects longer audio before the model is called. Zero disables the check.
	MaxDuration time.Duration
	// WorkDir holds the intermediate WAV. Empty uses the source file's directory.
	WorkDir string
	Logger  *slog.Logger
}

type Transcript struct {
	Text            string
	Model           string
	Audio           audio.Info
	Usage           llm.Usage
	ConvertDuration time.Duration
	ModelDuration   time.Duration
}

type Transcriber struct {
	client      llm.Client
	converter   Converter
	model       string
	prompt      string
	maxDuration time.Duration
	workDir     string
	logger      *slog.Logger
}

func New(opts Options) (*Transcriber, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("transcriber: missing model client")
	}
	if opts.Converter == nil {
		return nil, fmt.Errorf("transcriber: missing audio converter")
	}
	prompt := strings.TrimSpace(opts.Prompt)
	if prompt == "" {
		prompt = DefaultPrompt
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcriber{
		client:      opts.Client,
		converter:   opts.Converter,
		model:       strings.TrimSpace(opts.Model),
		prompt:      prompt,
		maxDuration: opts.MaxDuration,
		workDir:     strings.TrimSpace(opts.WorkDir),
		logger:      logger,
	}, nil
}

// ProcessFile converts the audio at path to WAV and asks the model for a
// transcription (and an English translation for non-English speech).
func (t *Transcriber) ProcessFile(ctx context.Context, path string) (Transcript, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Transcript{}, fmt.Errorf("missing audio path")
	}
	dir := t.workDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	wavPath := filepath.Join(dir, "wav_"+uuid.NewString()+".wav")
	defer func() {
		if err := os.Remove(wavPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			t.logger.Warn("transcriber_cleanup_error", "path", wavPath, "error", err.Error())
		}
	}()

	convStart := time.Now()
	info, err := t.converter.ToWAV(ctx, path, wavPath)
	if err != nil {
		return Transcript{}, &StageError{Stage: StageConvert, Err: err}
	}
	convTook := time.Since(convStart)
	if t.maxDuration > 0 && info.Duration() > t.maxDuration {
		return Transcript{}, &StageError{Stage: StageConvert, Err: fmt.Errorf("%w: %s > %s", ErrAudioTooLong, info.Duration().Round(time.Second), t.maxDuration)}
	}

	wav, err := os.ReadFile(wavPath)
	if err != nil {
		return Transcript{}, &StageError{Stage: StageRead, Err: err}
	}

	res, err := t.Transcribe(ctx, wav)
	if err != nil {
		return Transcript{}, &StageError{Stage: StageModel, Err: err}
	}
	return Transcript{
		Text:            res.Text,
		Model:           t.model,
		Audio:           info,
		Usage:           res.Usage,
		ConvertDuration: convTook,
		ModelDuration:   res.Duration,
	}, nil
}

// Transcribe sends canonical WAV bytes to the model with the instruction prompt.
func (t *Transcriber) Transcribe(ctx context.Context, wav []byte) (llm.Result, error) {
	if len(wav) == 0 {
		return llm.Result{}, audio.ErrEmptyAudio
	}
	res, err := t.client.Generate(ctx, llm.Request{
		Model: t.model,
		Parts: []llm.Part{
			llm.DataPart(wav, audio.WAVMimeType),
			llm.TextPart(t.prompt),
		},
	})
	if err != nil {
		return llm.Result{}, err
	}
	res.Text = strings.TrimSpace(res.Text)
	if res.Text == "" {
		return llm.Result{}, fmt.Errorf("model returned no text")
	}
	t.logger.Debug("transcriber_model_done",
		"model", t.model,
		"wav_bytes", len(wav),
		"input_tokens", res.Usage.InputTokens,
		"output_tokens", res.Usage.OutputTokens,
		"took", res.Duration.String(),
	)
	return res, nil
}
