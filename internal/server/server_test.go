package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/dukerupert/choreday/internal/auth"
	"github.com/dukerupert/choreday/internal/docstore"
	"github.com/dukerupert/choreday/internal/middleware"
	"github.com/dukerupert/choreday/internal/store"
)

var testSecret = []byte("server-test-secret")

const testAdminKey = "let-me-in"

func setupServer(t *testing.T, cfg Config) (*Server, *docstore.DB) {
	t.Helper()
	db := docstore.NewMemory()
	cfg.AuthSecret = testSecret
	s := New(db, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() {
		s.Close()
		db.Close()
	})
	return s, db
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.SignToken(testSecret, userID, "Aki", "aki@example.com", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func do(t *testing.T, h http.Handler, method, target, bearer, adminKey string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.RemoteAddr = "192.0.2.1:1234"
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if adminKey != "" {
		req.Header.Set(middleware.AdminKeyHeader, adminKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := setupServer(t, Config{})
	rec := do(t, s.Router(), http.MethodGet, "/health", "", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("health = %d %s", rec.Code, rec.Body)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	s, _ := setupServer(t, Config{})
	rec := do(t, s.Router(), http.MethodGet, "/api/tasks", "", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAdminGenerateEndToEnd(t *testing.T) {
	hash, err := middleware.HashAdminKey(testAdminKey)
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	s, db := setupServer(t, Config{AdminKeyHash: hash})
	router := s.Router()
	ctx := context.Background()

	// u1 lives in its personal household, also named u1.
	if _, err := store.NewTemplateStore(db).Create(ctx, "u1", "dishes", []int{0, 1, 2, 3, 4, 5, 6}, nil); err != nil {
		t.Fatalf("create template: %v", err)
	}

	rec := do(t, router, http.MethodGet, "/admin/generate?householdId=u1", "", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("without key = %d, want 401", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/admin/generate", "", testAdminKey, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("without household = %d, want 400", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/admin/generate?householdId=u1", "", testAdminKey, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("generate = %d %s", rec.Code, rec.Body)
	}
	var body struct {
		OK      bool `json:"ok"`
		Created int  `json:"created"`
	}
	json.NewDecoder(rec.Body).Decode(&body)
	if !body.OK || body.Created != 1 {
		t.Errorf("body = %+v", body)
	}

	rec = do(t, router, http.MethodGet, "/api/tasks", token(t, "u1"), "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d %s", rec.Code, rec.Body)
	}
	var tasks []struct {
		Title string `json:"title"`
	}
	json.NewDecoder(rec.Body).Decode(&tasks)
	if len(tasks) != 1 || tasks[0].Title != "dishes" {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestAdminRateLimit(t *testing.T) {
	s, _ := setupServer(t, Config{AdminRateLimit: 2})
	router := s.Router()

	for i := 0; i < 2; i++ {
		if rec := do(t, router, http.MethodGet, "/admin/generate", "", "", ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("request %d = %d, want 400", i, rec.Code)
		}
	}
	rec := do(t, router, http.MethodGet, "/admin/generate", "", "", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", rec.Code)
	}
}

func TestTaskFlowOverHTTP(t *testing.T) {
	s, _ := setupServer(t, Config{})
	router := s.Router()
	tok := token(t, "u1")

	rec := do(t, router, http.MethodPost, "/api/tasks", tok, "", `{"title":"dishes","dateKey":"2024-03-12"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body)
	}
	var task struct {
		ID string `json:"id"`
	}
	json.NewDecoder(rec.Body).Decode(&task)

	rec = do(t, router, http.MethodPost, "/api/tasks/"+task.ID+"/reactions", token(t, "u2"), "", `{"kind":"thanks"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("reaction from another household = %d, want 404", rec.Code)
	}

	rec = do(t, router, http.MethodPost, "/api/tasks/"+task.ID+"/reactions", tok, "", `{"kind":"thanks"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"added"`) {
		t.Errorf("reaction = %d %s", rec.Code, rec.Body)
	}

	rec = do(t, router, http.MethodPut, "/api/tasks/"+task.ID+"/status", tok, "", `{"status":"done"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d %s", rec.Code, rec.Body)
	}
}

func TestWebSocketFeed(t *testing.T) {
	s, _ := setupServer(t, Config{})
	router := s.Router()
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?access_token=" + token(t, "u1")
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	// Registration happens after the upgrade; wait for it before writing.
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	rec := do(t, router, http.MethodPost, "/api/tasks", token(t, "u1"), "", `{"title":"dishes"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d", rec.Code)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != "task_created" {
		t.Errorf("type = %q, want task_created", msg.Type)
	}
}
