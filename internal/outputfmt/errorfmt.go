package outputfmt

import (
	"net/url"
	"regexp"
	"strings"
)

const redacted = "[redacted]"

var (
	absoluteURLInTextRE = regexp.MustCompile(`https?://[^\s"'<>]+`)
	// Bot API tokens appear in request paths as /bot<id>:<secret>/.
	botTokenInPathRE = regexp.MustCompile(`bot[0-9]{3,}:[A-Za-z0-9_-]{20,}`)
)

// FormatErrorForDisplay turns err into text that is safe to show in chat.
// URL hosts are dropped, credential-like query values and bot tokens are
// redacted, and every non-empty secret is replaced verbatim.
func FormatErrorForDisplay(err error, secrets ...string) string {
	if err == nil {
		return ""
	}
	return ScrubSecrets(SanitizeErrorText(err.Error()), secrets...)
}

func SanitizeErrorText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	out := absoluteURLInTextRE.ReplaceAllStringFunc(raw, sanitizeURLInText)
	return botTokenInPathRE.ReplaceAllString(out, "bot"+redacted)
}

// ScrubSecrets replaces each secret found in text. Blank secrets are ignored.
func ScrubSecrets(text string, secrets ...string) string {
	for _, s := range secrets {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		text = strings.ReplaceAll(text, s, redacted)
	}
	return text
}

func sanitizeURLInText(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if strings.TrimSpace(u.Scheme) == "" || strings.TrimSpace(u.Host) == "" {
		return raw
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if len(u.Query()) > 0 {
		path += "?" + redactSensitiveQuery(u.Query())
	}
	if frag := strings.TrimSpace(u.EscapedFragment()); frag != "" {
		path += "#" + frag
	}
	return path
}

func redactSensitiveQuery(q url.Values) string {
	for k := range q {
		if isSensitiveQueryKey(k) {
			q.Set(k, redacted)
		}
	}
	return q.Encode()
}

func isSensitiveQueryKey(key string) bool {
	n := strings.ToLower(strings.TrimSpace(key))
	n = strings.NewReplacer("-", "", "_", "").Replace(n)
	if n == "" {
		return false
	}
	if n == "key" {
		return true
	}
	for _, marker := range []string{"apikey", "authorization", "token", "secret", "password", "cookie"} {
		if strings.Contains(n, marker) {
			return true
		}
	}
	return false
}
