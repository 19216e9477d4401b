package transcriber

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/StewartalsopIII/transcribe-telegram/audio"
	"github.com/StewartalsopIII/transcribe-telegram/llm"
)

type fakeConverter struct {
	info    audio.Info
	payload []byte
	err     error
	dst     string
}

func (c *fakeConverter) ToWAV(ctx context.Context, srcPath, dstPath string) (audio.Info, error) {
	c.dst = dstPath
	if c.err != nil {
		return audio.Info{}, c.err
	}
	if err := os.WriteFile(dstPath, c.payload, 0o600); err != nil {
		return audio.Info{}, err
	}
	return c.info, nil
}

type fakeClient struct {
	reqs []llm.Request
	text string
	err  error
}

func (c *fakeClient) Generate(ctx context.Context, req llm.Request) (llm.Result, error) {
	c.reqs = append(c.reqs, req)
	if c.err != nil {
		return llm.Result{}, c.err
	}
	return llm.Result{Text: c.text, Duration: 20 * time.Millisecond}, nil
}

func oneSecondInfo() audio.Info {
	return audio.Info{AudioFormat: 1, Channels: 1, SampleRate: 16000, BitsPerSample: 16, DataBytes: 32000}
}

func TestProcessFile_SendsWAVAndPrompt(t *testing.T) {
	conv := &fakeConverter{info: oneSecondInfo(), payload: []byte("RIFF....WAVE")}
	client := &fakeClient{text: "  Original: Привет\nTranslation: Hello  "}
	tr, err := New(Options{Client: client, Converter: conv, Model: "gemini-1.5-pro"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	src := filepath.Join(t.TempDir(), "voice.oga")
	got, err := tr.ProcessFile(context.Background(), src)
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	if got.Text != "Original: Привет\nTranslation: Hello" {
		t.Fatalf("text mismatch: %q", got.Text)
	}
	if got.Audio.Duration() != time.Second {
		t.Fatalf("audio duration mismatch: %s", got.Audio.Duration())
	}
	if len(client.reqs) != 1 {
		t.Fatalf("expected 1 model call, got %d", len(client.reqs))
	}
	req := client.reqs[0]
	if req.Model != "gemini-1.5-pro" {
		t.Fatalf("model mismatch: %q", req.Model)
	}
	if len(req.Parts) != 2 || !req.Parts[0].IsData() || req.Parts[0].MIMEType != "audio/wav" {
		t.Fatalf("first part should be inline wav: %+v", req.Parts)
	}
	if string(req.Parts[0].Data) != "RIFF....WAVE" {
		t.Fatalf("wav payload mismatch: %q", req.Parts[0].Data)
	}
	if req.Parts[1].Text != DefaultPrompt {
		t.Fatalf("prompt mismatch: %q", req.Parts[1].Text)
	}
	if filepath.Dir(conv.dst) != filepath.Dir(src) {
		t.Fatalf("wav should be written next to the source, got %s", conv.dst)
	}
	if _, err := os.Stat(conv.dst); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("intermediate wav should be removed, stat err = %v", err)
	}
}

func TestProcessFile_WrapsConvertError(t *testing.T) {
	conv := &fakeConverter{err: audio.ErrConverterNotFound}
	client := &fakeClient{text: "x"}
	tr, _ := New(Options{Client: client, Converter: conv, WorkDir: t.TempDir()})

	_, err := tr.ProcessFile(context.Background(), "/tmp/in.ogg")
	if !errors.Is(err, audio.ErrConverterNotFound) {
		t.Fatalf("expected ErrConverterNotFound, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "convert audio:") {
		t.Fatalf("error should name the failing step: %v", err)
	}
	if got := StageOf(err); got != StageConvert {
		t.Fatalf("StageOf() = %q, want %q", got, StageConvert)
	}
	if len(client.reqs) != 0 {
		t.Fatalf("model must not be called when conversion fails")
	}
}

func TestProcessFile_RejectsLongAudio(t *testing.T) {
	info := oneSecondInfo()
	info.DataBytes = 32000 * 120
	conv := &fakeConverter{info: info, payload: []byte("RIFF")}
	client := &fakeClient{text: "x"}
	tr, _ := New(Options{Client: client, Converter: conv, MaxDuration: time.Minute, WorkDir: t.TempDir()})

	_, err := tr.ProcessFile(context.Background(), "in.ogg")
	if !errors.Is(err, ErrAudioTooLong) {
		t.Fatalf("expected ErrAudioTooLong, got %v", err)
	}
	if len(client.reqs) != 0 {
		t.Fatalf("model must not be called for rejected audio")
	}
}

func TestProcessFile_WrapsModelError(t *testing.T) {
	conv := &fakeConverter{info: oneSecondInfo(), payload: []byte("RIFF")}
	client := &fakeClient{err: errors.New("quota exceeded")}
	tr, _ := New(Options{Client: client, Converter: conv, WorkDir: t.TempDir()})

	_, err := tr.ProcessFile(context.Background(), "in.ogg")
	if err == nil || err.Error() != "transcribe: quota exceeded" {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := StageOf(err); got != StageModel {
		t.Fatalf("StageOf() = %q, want %q", got, StageModel)
	}
	if got := StageOf(errors.New("other")); got != "" {
		t.Fatalf("StageOf() of plain error = %q", got)
	}
}

func TestTranscribe_EmptyModelText(t *testing.T) {
	tr, _ := New(Options{Client: &fakeClient{text: " \n"}, Converter: &fakeConverter{}})
	if _, err := tr.Transcribe(context.Background(), []byte("RIFF")); err == nil {
		t.Fatalf("expected error for blank model output")
	}
	if _, err := tr.Transcribe(context.Background(), nil); !errors.Is(err, audio.ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
}

func TestNew_CustomPrompt(t *testing.T) {
	client := &fakeClient{text: "ok"}
	tr, err := New(Options{Client: client, Converter: &fakeConverter{}, Prompt: "just words"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := tr.Transcribe(context.Background(), []byte("RIFF")); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if client.reqs[0].Parts[1].Text != "just words" {
		t.Fatalf("custom prompt not used: %q", client.reqs[0].Parts[1].Text)
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Options{Converter: &fakeConverter{}}); err == nil {
		t.Fatalf("expected error without client")
	}
	if _, err := New(Options{Client: &fakeClient{}}); err == nil {
		t.Fatalf("expected error without converter")
	}
}
