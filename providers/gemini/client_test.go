package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/StewartalsopIII/transcribe-telegram/llm"
)

type generateContentBody struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text       string `json:"text"`
			InlineData *struct {
				MIMEType string `json:"mimeType"`
				Data     string `json:"data"`
			} `json:"inlineData"`
		} `json:"parts"`
	} `json:"contents"`
}

func TestGenerate_SendsInlineAudioAndPrompt(t *testing.T) {
	var got generateContentBody
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates":[{"content":{"role":"model","parts":[{"text":"  hello world \n"}]},"finishReason":"STOP"}],
			"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":3,"totalTokenCount":13}
		}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), Config{APIKey: "KEY", Endpoint: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	res, err := c.Generate(context.Background(), llm.Request{
		Parts: []llm.Part{llm.DataPart([]byte("RIFFdata"), "audio/wav"), llm.TextPart("transcribe")},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.Text != "hello world" {
		t.Fatalf("text mismatch: got %q", res.Text)
	}
	if res.Usage.TotalTokens != 13 || res.Usage.InputTokens != 10 || res.Usage.OutputTokens != 3 {
		t.Fatalf("usage mismatch: %+v", res.Usage)
	}
	if !strings.HasSuffix(gotPath, "models/"+DefaultModel+":generateContent") {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotKey != "KEY" {
		t.Fatalf("api key header mismatch: got %q", gotKey)
	}
	if len(got.Contents) != 1 || len(got.Contents[0].Parts) != 2 {
		t.Fatalf("unexpected contents: %+v", got.Contents)
	}
	if got.Contents[0].Role != "user" {
		t.Fatalf("role mismatch: got %q", got.Contents[0].Role)
	}
	inline := got.Contents[0].Parts[0].InlineData
	if inline == nil || inline.MIMEType != "audio/wav" {
		t.Fatalf("first part should be inline audio/wav: %+v", got.Contents[0].Parts[0])
	}
	data, err := base64.StdEncoding.DecodeString(inline.Data)
	if err != nil || string(data) != "RIFFdata" {
		t.Fatalf("inline data mismatch: %q (%v)", inline.Data, err)
	}
	if got.Contents[0].Parts[1].Text != "transcribe" {
		t.Fatalf("prompt part mismatch: %+v", got.Contents[0].Parts[1])
	}
}

func TestGenerate_EmptyResponseIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), Config{APIKey: "KEY", Model: "gemini-test", Endpoint: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = c.Generate(context.Background(), llm.Request{Parts: []llm.Part{llm.TextPart("hi")}})
	if err == nil || !strings.Contains(err.Error(), "empty response") {
		t.Fatalf("expected empty response error, got %v", err)
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}

func TestNew_DefaultsModel(t *testing.T) {
	c, err := New(context.Background(), Config{APIKey: "KEY"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Model() != DefaultModel {
		t.Fatalf("model mismatch: got %q", c.Model())
	}
}
