package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Part is one piece of a multimodal prompt: either text or inline bytes.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

func TextPart(text string) Part {
	return Part{Text: text}
}

func DataPart(data []byte, mimeType string) Part {
	return Part{Data: data, MIMEType: mimeType}
}

func (p Part) IsData() bool {
	return len(p.Data) > 0
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	Text     string
	Usage    Usage
	Duration time.Duration
}

type Request struct {
	Model string
	Parts []Part
}

// Validate reports requests that no provider can serve.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return fmt.Errorf("missing model")
	}
	if len(r.Parts) == 0 {
		return fmt.Errorf("missing parts")
	}
	for i, p := range r.Parts {
		if p.IsData() {
			if strings.TrimSpace(p.MIMEType) == "" {
				return fmt.Errorf("part %d: missing mime type", i)
			}
			continue
		}
		if strings.TrimSpace(p.Text) == "" {
			return fmt.Errorf("part %d: empty", i)
		}
	}
	return nil
}

type Client interface {
	Generate(ctx context.Context, req Request) (Result, error)
}
