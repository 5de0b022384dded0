package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"story-palace/internal/audio"
	"story-palace/internal/catalog"
	"story-palace/internal/config"
	"story-palace/internal/models"
	"story-palace/internal/pkg/logger"
	"story-palace/internal/screen"
	"story-palace/internal/speech"
)

type nopHandle struct{}

func (nopHandle) Play() error             { return nil }
func (nopHandle) Pause() error            { return nil }
func (nopHandle) Resume() error           { return nil }
func (nopHandle) Stop() error             { return nil }
func (nopHandle) SetVolume(float64) error { return nil }

type nopOutput struct{}

func (nopOutput) Load(string, func(error)) (audio.Handle, error) { return nopHandle{}, nil }

type pathResolver struct{}

func (pathResolver) Resolve(ref string) (string, error) { return "/cache/" + ref, nil }

type fakeHistory struct {
	session string
	limit   int
}

func (f *fakeHistory) Recent(sessionID string, limit int) ([]models.ListenEvent, error) {
	f.session, f.limit = sessionID, limit
	return []models.ListenEvent{{Action: models.ActionPlay, Title: "The Magical Forest"}}, nil
}

func newTestServer(t *testing.T, secret string) (*Server, *fakeHistory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Log.Mode = "test"
	cfg.API.JWTSecret = secret

	log := logger.Nop()
	cat := catalog.Default()
	scr := screen.New(cat, pathResolver{}, nopOutput{}, speech.NewLog(log), screen.Options{}, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		scr.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	h := &fakeHistory{}
	return New(cfg, cat, scr, h, log), h
}

func do(s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, "")
	w := do(s, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCatalog(t *testing.T) {
	s, _ := newTestServer(t, "")
	w := do(s, http.MethodGet, "/api/v1/catalog", "", nil)

	var body struct {
		Count   int            `json:"count"`
		Stories []models.Story `json:"stories"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 4 || body.Stories[0].Title != "The Magical Forest" {
		t.Errorf("catalog = %+v", body)
	}
}

func TestPostEvents(t *testing.T) {
	s, _ := newTestServer(t, "")

	for _, ev := range []string{`{"type":"appeared"}`, `{"type":"tap_next"}`} {
		if w := do(s, http.MethodPost, "/api/v1/screen/events", ev, nil); w.Code != http.StatusOK {
			t.Fatalf("POST %s: status %d %s", ev, w.Code, w.Body.String())
		}
	}

	w := do(s, http.MethodPost, "/api/v1/screen/events", `{"type":"drag_changed","angle":275}`, nil)
	var snap screen.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Index != 3 || snap.Title != "The Space Adventure" {
		t.Errorf("snapshot = %+v", snap)
	}

	w = do(s, http.MethodGet, "/api/v1/screen", "", nil)
	if !strings.Contains(w.Body.String(), `"title":"The Space Adventure"`) {
		t.Errorf("GET screen = %s", w.Body.String())
	}
}

func TestPostEvents_BadRequest(t *testing.T) {
	s, _ := newTestServer(t, "")

	tests := []string{
		`not json`,
		`{}`,
		`{"type":"spin"}`,
		`{"type":"drag_changed"}`,
	}
	for _, body := range tests {
		if w := do(s, http.MethodPost, "/api/v1/screen/events", body, nil); w.Code != http.StatusBadRequest {
			t.Errorf("POST %s: status %d, want 400", body, w.Code)
		}
	}
}

func TestHistory(t *testing.T) {
	s, h := newTestServer(t, "")

	w := do(s, http.MethodGet, "/api/v1/history?limit=5&session=abc", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "The Magical Forest") {
		t.Fatalf("history: %d %s", w.Code, w.Body.String())
	}
	if h.limit != 5 || h.session != "abc" {
		t.Errorf("query = %q/%d", h.session, h.limit)
	}

	if w := do(s, http.MethodGet, "/api/v1/history?limit=-1", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("negative limit: status %d, want 400", w.Code)
	}
}

func TestAuth(t *testing.T) {
	s, _ := newTestServer(t, "test-secret")

	if w := do(s, http.MethodGet, "/api/v1/screen", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status %d, want 401", w.Code)
	}
	if w := do(s, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("health must stay public, got %d", w.Code)
	}

	token := signed(t, "test-secret")
	w := do(s, http.MethodGet, "/api/v1/screen", "", map[string]string{"Authorization": "Bearer " + token})
	if w.Code != http.StatusOK {
		t.Errorf("valid header token: status %d", w.Code)
	}
	if w := do(s, http.MethodGet, "/api/v1/catalog?token="+token, "", nil); w.Code != http.StatusOK {
		t.Errorf("valid query token: status %d", w.Code)
	}

	bad := signed(t, "other-secret")
	w = do(s, http.MethodGet, "/api/v1/screen", "", map[string]string{"Authorization": "Bearer " + bad})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: status %d, want 401", w.Code)
	}
}

func TestStream(t *testing.T) {
	s, _ := newTestServer(t, "")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/screen/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if strings.HasPrefix(sc.Text(), "event:snapshot") {
			return
		}
	}
	t.Fatalf("no snapshot event: %v", sc.Err())
}

func signed(t *testing.T, secret string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "test-remote",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}
