package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	WAVMimeType       = "audio/wav"
)

var (
	ErrConverterNotFound = errors.New("no audio converter found (install ffmpeg)")
	ErrEmptyAudio        = errors.New("audio contains no samples")
)

type Format struct {
	SampleRate int
	Channels   int
}

func DefaultFormat() Format {
	return Format{SampleRate: DefaultSampleRate, Channels: DefaultChannels}
}

func (f Format) normalized() Format {
	if f.SampleRate <= 0 {
		f.SampleRate = DefaultSampleRate
	}
	if f.Channels <= 0 {
		f.Channels = DefaultChannels
	}
	return f
}

// Converter turns any container/codec ffmpeg understands into canonical WAV.
type Converter struct {
	ffmpegPath string
	format     Format
	logger     *slog.Logger
}

func NewConverter(ffmpegPath string, format Format, logger *slog.Logger) *Converter {
	ffmpegPath = strings.TrimSpace(ffmpegPath)
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{
		ffmpegPath: ffmpegPath,
		format:     format.normalized(),
		logger:     logger,
	}
}

func (c *Converter) Format() Format { return c.format }

// Available reports whether the configured ffmpeg binary can be found.
func (c *Converter) Available() bool {
	_, err := c.binary()
	return err == nil
}

func (c *Converter) binary() (string, error) {
	p, err := exec.LookPath(c.ffmpegPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrConverterNotFound, c.ffmpegPath)
	}
	return p, nil
}

// ToWAV converts srcPath into dstPath and returns the validated WAV info.
func (c *Converter) ToWAV(ctx context.Context, srcPath, dstPath string) (Info, error) {
	srcPath = strings.TrimSpace(srcPath)
	dstPath = strings.TrimSpace(dstPath)
	if srcPath == "" {
		return Info{}, fmt.Errorf("missing source path")
	}
	if dstPath == "" {
		return Info{}, fmt.Errorf("missing destination path")
	}
	bin, err := c.binary()
	if err != nil {
		return Info{}, err
	}

	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", srcPath,
		"-vn", "-map_metadata", "-1",
		"-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(c.format.Channels),
		"-ar", strconv.Itoa(c.format.SampleRate),
		"-f", "wav",
		dstPath,
	}
	start := time.Now()
	out, err := exec.CommandContext(ctx, bin, args...).CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Info{}, fmt.Errorf("ffmpeg convert: %w", ctxErr)
		}
		return Info{}, fmt.Errorf("ffmpeg convert failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	f, err := os.Open(dstPath)
	if err != nil {
		return Info{}, fmt.Errorf("open converted audio: %w", err)
	}
	defer f.Close()
	info, err := ReadWAVInfo(f)
	if err != nil {
		return Info{}, err
	}
	if info.DataBytes == 0 {
		return Info{}, ErrEmptyAudio
	}
	c.logger.Debug("audio_converted",
		"src", srcPath,
		"sample_rate", info.SampleRate,
		"channels", info.Channels,
		"data_bytes", info.DataBytes,
		"audio_duration", info.Duration().String(),
		"took", time.Since(start).String(),
	)
	return info, nil
}
