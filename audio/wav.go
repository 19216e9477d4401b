package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
	// ffmpeg writes this when the output is not seekable.
	wavUnknownSize = 0xFFFFFFFF
)

// Info describes a validated WAV stream.
type Info struct {
	AudioFormat   uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
	DataBytes     int64
}

func (i Info) BytesPerSecond() int64 {
	return int64(i.SampleRate) * int64(i.Channels) * int64(i.BitsPerSample) / 8
}

func (i Info) Duration() time.Duration {
	bps := i.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(float64(i.DataBytes) / float64(bps) * float64(time.Second))
}

// ReadWAVInfo parses the RIFF header of r and returns the format of its data
// chunk. Unknown chunks (LIST, fact, ...) are skipped.
func ReadWAVInfo(r io.Reader) (Info, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Info{}, fmt.Errorf("invalid WAV file: short header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" {
		return Info{}, fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(riff[8:12]) != "WAVE" {
		return Info{}, fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	var info Info
	haveFmt := false
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Info{}, fmt.Errorf("invalid WAV file: missing data chunk")
			}
			return Info{}, err
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return Info{}, fmt.Errorf("invalid WAV file: fmt chunk too short (%d bytes)", size)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return Info{}, fmt.Errorf("invalid WAV file: read fmt chunk: %w", err)
			}
			if size%2 == 1 {
				if _, err := io.CopyN(io.Discard, r, 1); err != nil {
					return Info{}, err
				}
			}
			info.AudioFormat = binary.LittleEndian.Uint16(body[0:2])
			info.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return Info{}, fmt.Errorf("invalid WAV file: data chunk before fmt chunk")
			}
			if size == wavUnknownSize {
				n, err := io.Copy(io.Discard, r)
				if err != nil {
					return Info{}, err
				}
				info.DataBytes = n
			} else {
				info.DataBytes = int64(size)
			}
			if err := info.validate(); err != nil {
				return Info{}, err
			}
			return info, nil
		default:
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return Info{}, fmt.Errorf("invalid WAV file: truncated %q chunk: %w", id, err)
			}
		}
	}
}

func (i Info) validate() error {
	if i.AudioFormat != wavFormatPCM && i.AudioFormat != wavFormatExtensible {
		return fmt.Errorf("unsupported audio format: %d (only PCM is supported)", i.AudioFormat)
	}
	if i.BitsPerSample != 16 {
		return fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", i.BitsPerSample)
	}
	if i.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", i.Channels)
	}
	if i.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", i.SampleRate)
	}
	return nil
}
