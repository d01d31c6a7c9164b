package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/datasage-io/datasage/internal/session"
	"github.com/datasage-io/datasage/pkg/protocol"
)

// mockAnalyst returns a canned answer and trace.
type mockAnalyst struct {
	answer string
	trace  *protocol.Trace
	asked  []string
}

func (m *mockAnalyst) Ask(_ context.Context, question string) (string, *protocol.Trace) {
	m.asked = append(m.asked, question)
	tr := m.trace
	if tr == nil {
		tr = &protocol.Trace{}
	}
	return m.answer, tr
}

// memStore is an in-memory session.Store.
type memStore struct {
	exchanges []*session.Exchange
}

func (m *memStore) SaveExchange(ex *session.Exchange) error {
	m.exchanges = append(m.exchanges, ex)
	return nil
}

func (m *memStore) GetSession(id string) (*session.Session, error) {
	sess := &session.Session{ID: id}
	for _, ex := range m.exchanges {
		if ex.SessionID == id {
			sess.Exchanges = append(sess.Exchanges, ex)
		}
	}
	if len(sess.Exchanges) == 0 {
		return nil, fmt.Errorf("session %q not found", id)
	}
	return sess, nil
}

func (m *memStore) ListSessions(int) ([]*session.Session, error) {
	seen := map[string]bool{}
	var out []*session.Session
	for _, ex := range m.exchanges {
		if !seen[ex.SessionID] {
			seen[ex.SessionID] = true
			out = append(out, &session.Session{ID: ex.SessionID})
		}
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func newTestServer(analyst AnalystService, store session.Store, key string) *Server {
	return NewServer(analyst, store, Config{Key: key}, nil, nil, nil)
}

func TestHealthNoAuth(t *testing.T) {
	s := newTestServer(&mockAnalyst{}, nil, "secret")

	req := httptest.NewRequest("GET", "/api/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(&mockAnalyst{}, nil, "secret")

	req := httptest.NewRequest("POST", "/api/ask", strings.NewReader(`{"question":"hi"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest("POST", "/api/ask", strings.NewReader(`{"question":"hi"}`))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with bad token, got %d", rec.Code)
	}
}

func TestAsk(t *testing.T) {
	trace := &protocol.Trace{}
	trace.Append("run_query", map[string]any{"query": "SELECT 1"}, "1", false, 0)

	analyst := &mockAnalyst{answer: "The answer is 1.", trace: trace}
	store := &memStore{}
	s := newTestServer(analyst, store, "")

	body := `{"question":"what is 1?"}`
	req := httptest.NewRequest("POST", "/api/ask", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response JSON: %v", err)
	}
	if resp.Answer != "The answer is 1." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.SessionID == "" {
		t.Error("expected a generated session id")
	}
	if len(resp.Trace) != 1 || resp.Trace[0].Tool != "run_query" {
		t.Errorf("trace = %+v", resp.Trace)
	}

	// The exchange is persisted under the generated session.
	if len(store.exchanges) != 1 || store.exchanges[0].SessionID != resp.SessionID {
		t.Errorf("exchange not saved: %+v", store.exchanges)
	}
}

func TestAsk_ReusesSessionID(t *testing.T) {
	analyst := &mockAnalyst{answer: "ok"}
	s := newTestServer(analyst, nil, "")

	req := httptest.NewRequest("POST", "/api/ask", strings.NewReader(`{"question":"hi","session_id":"sess-7"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp askResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.SessionID != "sess-7" {
		t.Errorf("session id = %q", resp.SessionID)
	}
}

func TestAsk_Validation(t *testing.T) {
	s := newTestServer(&mockAnalyst{}, nil, "")

	req := httptest.NewRequest("POST", "/api/ask", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad JSON, got %d", rec.Code)
	}

	req = httptest.NewRequest("POST", "/api/ask", strings.NewReader(`{"question":"  "}`))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty question, got %d", rec.Code)
	}
}

func TestGetSession(t *testing.T) {
	store := &memStore{exchanges: []*session.Exchange{
		{ID: "ex-1", SessionID: "sess-1", Question: "q", Answer: "a"},
	}}
	s := newTestServer(&mockAnalyst{}, store, "")

	req := httptest.NewRequest("GET", "/api/sessions/sess-1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var sess session.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if len(sess.Exchanges) != 1 {
		t.Errorf("exchanges = %+v", sess.Exchanges)
	}

	req = httptest.NewRequest("GET", "/api/sessions/missing", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestListSessions(t *testing.T) {
	store := &memStore{exchanges: []*session.Exchange{
		{ID: "e1", SessionID: "s1"},
		{ID: "e2", SessionID: "s2"},
	}}
	s := newTestServer(&mockAnalyst{}, store, "")

	req := httptest.NewRequest("GET", "/api/sessions", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var sessions []*session.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestGetLogsWithoutQuerier(t *testing.T) {
	s := newTestServer(&mockAnalyst{}, nil, "")

	req := httptest.NewRequest("GET", "/api/logs", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %q", rec.Body.String())
	}
}

func TestServeUI(t *testing.T) {
	s := newTestServer(&mockAnalyst{}, nil, "")

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "datasage") {
		t.Error("page body missing app markup")
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(&mockAnalyst{}, nil, "secret")

	req := httptest.NewRequest("OPTIONS", "/api/ask", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
