package telegramcmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

const testToken = "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw"

type apiCall struct {
	Method string
	Form   url.Values
}

// fakeTelegram stands in for the Bot API and the file download endpoint.
type fakeTelegram struct {
	t   *testing.T
	srv *httptest.Server

	mu        sync.Mutex
	calls     []apiCall
	nextMsgID int
	updates   [][]map[string]any
	files     map[string][]byte
	fileSize  int
	// failSend makes sendMessage fail for texts containing the key.
	failSend map[string]string
	// rejectSend makes sendMessage fail for texts containing the key in any parse mode.
	rejectSend map[string]string
	failDel    int
}

func newFakeTelegram(t *testing.T) *fakeTelegram {
	t.Helper()
	f := &fakeTelegram{
		t:          t,
		nextMsgID:  100,
		files:      map[string][]byte{},
		failSend:   map[string]string{},
		rejectSend: map[string]string{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeTelegram) apiEndpoint() string  { return f.srv.URL + "/bot%s/%s" }
func (f *fakeTelegram) fileEndpoint() string { return f.srv.URL + "/file/bot%s/%s" }

func (f *fakeTelegram) serve(w http.ResponseWriter, r *http.Request) {
	if rest, ok := strings.CutPrefix(r.URL.Path, "/file/bot"+testToken+"/"); ok {
		f.mu.Lock()
		data, found := f.files[rest]
		f.mu.Unlock()
		if !found {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
		return
	}

	method, ok := strings.CutPrefix(r.URL.Path, "/bot"+testToken+"/")
	if !ok {
		http.Error(w, "bad token", http.StatusUnauthorized)
		return
	}
	if err := r.ParseForm(); err != nil {
		f.t.Errorf("parse form: %v", err)
	}
	call := apiCall{Method: method, Form: r.PostForm}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	var result any = true
	var apiErr string
	idle := false
	switch method {
	case "getMe":
		result = map[string]any{"id": 1, "is_bot": true, "first_name": "Transcriber", "username": "transcribe_bot"}
	case "getUpdates":
		var batch []map[string]any
		if len(f.updates) > 0 {
			batch = f.updates[0]
			f.updates = f.updates[1:]
		}
		if batch == nil {
			batch = []map[string]any{}
			idle = true
		}
		result = batch
	case "sendMessage":
		for key, desc := range f.failSend {
			if strings.Contains(call.Form.Get("text"), key) && call.Form.Get("parse_mode") != "" {
				apiErr = desc
			}
		}
		for key, desc := range f.rejectSend {
			if strings.Contains(call.Form.Get("text"), key) {
				apiErr = desc
			}
		}
		f.nextMsgID++
		chatID := call.Form.Get("chat_id")
		result = map[string]any{
			"message_id": f.nextMsgID,
			"date":       0,
			"chat":       map[string]any{"id": json.Number(chatID), "type": "private"},
			"text":       call.Form.Get("text"),
		}
	case "deleteMessage":
		if f.failDel > 0 {
			f.failDel--
			apiErr = "Bad Request: message can't be deleted"
		}
	case "getFile":
		path := "voice/file_1.oga"
		result = map[string]any{"file_id": call.Form.Get("file_id"), "file_unique_id": "u1", "file_size": f.fileSize, "file_path": path}
	}
	f.mu.Unlock()

	if idle {
		// Keep an empty long poll from spinning.
		time.Sleep(20 * time.Millisecond)
	}
	w.Header().Set("Content-Type", "application/json")
	if apiErr != "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 400, "description": apiErr})
	} else {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
	}
}

func (f *fakeTelegram) callsFor(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeTelegram) pushUpdates(batch ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, batch)
}

func (f *fakeTelegram) setFile(path string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = data
	f.fileSize = len(data)
}

func voiceUpdate(updateID int, chatID int64, messageID int) map[string]any {
	return map[string]any{
		"update_id": updateID,
		"message": map[string]any{
			"message_id": messageID,
			"date":       0,
			"chat":       map[string]any{"id": chatID, "type": "private"},
			"voice":      map[string]any{"file_id": fmt.Sprintf("voice-%d", messageID), "file_unique_id": "v", "duration": 3},
		},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func textUpdate(updateID int, chatID int64, messageID int, text string) map[string]any {
	return map[string]any{
		"update_id": updateID,
		"message": map[string]any{
			"message_id": messageID,
			"date":       0,
			"chat":       map[string]any{"id": chatID, "type": "private"},
			"text":       text,
		},
	}
}
