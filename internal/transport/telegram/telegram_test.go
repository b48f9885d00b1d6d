package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"remindd/internal/reminder"
	"remindd/internal/transport"
	logx "remindd/pkg/logx"
)

func TestSplitText(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		limit int
		want  int
	}{
		{"short", "hello", 10, 1},
		{"exact", "abcdefghij", 10, 1},
		{"hard cut", strings.Repeat("x", 25), 10, 3},
		{"newline preferred", "aaaaaaa\nbbbbbbb\nccc", 10, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitText(tc.in, tc.limit)
			if len(got) != tc.want {
				t.Fatalf("chunks = %q, want %d", got, tc.want)
			}
			for _, c := range got {
				if len([]rune(c)) > tc.limit {
					t.Fatalf("chunk %q exceeds limit", c)
				}
			}
		})
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{ChatID: 1, Offline: true}, logx.Nop()); err == nil {
		t.Fatal("expected token error")
	}
	if _, err := New(Config{Token: "x", Offline: true}, logx.Nop()); err == nil {
		t.Fatal("expected chat id error")
	}
}

func TestSendPostsToBotAPI(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
		forms []url.Values
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		forms = append(forms, parseBody(r, body))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`)
	}))
	defer srv.Close()

	s, err := New(Config{Token: "TOKEN", ChatID: 42, APIURL: srv.URL, Offline: true}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = s.Send(context.Background(), transport.Message{
		Title:   "📌 New task assigned",
		Body:    `"Dishes" is waiting for you`,
		Payload: reminder.Payload{TaskID: "t9", Route: "/tasks/t9"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 1 || paths[0] != "/botTOKEN/sendMessage" {
		t.Fatalf("paths = %v", paths)
	}
	if got := forms[0].Get("chat_id"); got != "42" {
		t.Fatalf("chat_id = %q", got)
	}
	if got := forms[0].Get("text"); !strings.Contains(got, "Dishes") {
		t.Fatalf("text = %q", got)
	}
}

// parseBody reads the Bot API params, which telebot sends as a JSON object.
func parseBody(r *http.Request, body []byte) url.Values {
	v := url.Values{}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		v, _ = url.ParseQuery(string(body))
		return v
	}
	for k, x := range m {
		v.Set(k, fmt.Sprint(x))
	}
	return v
}
