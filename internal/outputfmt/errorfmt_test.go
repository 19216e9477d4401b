package outputfmt

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeErrorText_RemovesHostAndRedactsSensitiveQuery(t *testing.T) {
	in := `transcribe: Post "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-pro:generateContent?key=sk-test-secret&alt=json": context deadline exceeded`

	out := SanitizeErrorText(in)
	if strings.Contains(out, "googleapis.com") {
		t.Fatalf("host should be removed, got %q", out)
	}
	if strings.Contains(out, "sk-test-secret") {
		t.Fatalf("sensitive key value should be redacted, got %q", out)
	}
	if !strings.Contains(out, `Post "/v1beta/models/gemini-1.5-pro:generateContent?`) {
		t.Fatalf("expected path/query to be kept, got %q", out)
	}
	if !strings.Contains(out, "key=%5Bredacted%5D") {
		t.Fatalf("expected key query to be redacted, got %q", out)
	}
}

func TestSanitizeErrorText_BotTokenInFileURL(t *testing.T) {
	in := `download: Get "https://api.telegram.org/file/bot123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw/voice/file_1.oga": EOF`
	out := SanitizeErrorText(in)
	if strings.Contains(out, "AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw") {
		t.Fatalf("bot token should be redacted, got %q", out)
	}
	if !strings.Contains(out, "/file/bot[redacted]/voice/file_1.oga") {
		t.Fatalf("expected path to be kept, got %q", out)
	}
}

func TestSanitizeErrorText_MultipleURLs(t *testing.T) {
	in := `fetch failed: https://a.example.com/ping?token=abc then https://b.example.com/health?ok=1`
	out := SanitizeErrorText(in)
	if strings.Contains(out, "a.example.com") || strings.Contains(out, "b.example.com") {
		t.Fatalf("hosts should be removed, got %q", out)
	}
	if !strings.Contains(out, "/ping?token=%5Bredacted%5D") {
		t.Fatalf("first url should keep path/query, got %q", out)
	}
	if !strings.Contains(out, "/health?ok=1") {
		t.Fatalf("second url should keep path/query, got %q", out)
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	if got := FormatErrorForDisplay(nil); got != "" {
		t.Fatalf("nil error should format as empty string, got %q", got)
	}
	err := errors.New(`gemini rejected key AIza-secret-value: bad request`)
	got := FormatErrorForDisplay(err, "", "AIza-secret-value")
	if strings.Contains(got, "AIza-secret-value") {
		t.Fatalf("secret should be scrubbed, got %q", got)
	}
	if got != "gemini rejected key [redacted]: bad request" {
		t.Fatalf("unexpected output %q", got)
	}
}
