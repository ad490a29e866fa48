package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"healthrag/internal/domain"
	"healthrag/internal/index"
)

type fakeAnswerer struct {
	answer string
	err    error
	asked  []string
}

func (f *fakeAnswerer) Ask(_ context.Context, q string) (string, error) {
	f.asked = append(f.asked, q)
	if f.err != nil {
		return "", f.err
	}
	return f.answer + ": " + q, nil
}

type fakeIndex struct{ state index.State }

func (f *fakeIndex) EnsureReady(context.Context) error { return nil }
func (f *fakeIndex) State() index.State                { return f.state }

func postChat(t *testing.T, s *Server, body string) (*httptest.ResponseRecorder, answerResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var resp answerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func TestChat_Success(t *testing.T) {
	a := &fakeAnswerer{answer: "ok"}
	s := New(a, &fakeIndex{state: index.Ready})
	rec, resp := postChat(t, s, `{"question":"¿Cada cuánto mido la glucosa?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if resp.Answer != "ok: ¿Cada cuánto mido la glucosa?" || resp.Error != "" {
		t.Errorf("unexpected response %+v", resp)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Error("expected a request id header")
	}
}

func TestChat_ErrorsAreGeneric(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{fmt.Errorf("%w: no files in /srv/docs", domain.ErrEmptyCorpus), http.StatusInternalServerError, MsgProcessingError},
		{fmt.Errorf("%w: status 401 bad key sk-123", domain.ErrGeneration), http.StatusInternalServerError, MsgProcessingError},
		{fmt.Errorf("%w: pattern 3", domain.ErrUnsafeAnswer), http.StatusInternalServerError, MsgProcessingError},
		{domain.ErrEmptyQuestion, http.StatusBadRequest, MsgMissingQuestion},
		{fmt.Errorf("%w: query dimension 3, index dimension 2", domain.ErrInvalidArgument), http.StatusInternalServerError, MsgProcessingError},
		{fmt.Errorf("%w: waiting for index build", domain.ErrTimeout), http.StatusGatewayTimeout, MsgTimeout},
	}
	for _, tc := range cases {
		s := New(&fakeAnswerer{err: tc.err}, nil)
		rec, resp := postChat(t, s, `{"question":"q"}`)
		if rec.Code != tc.code || resp.Error != tc.msg || resp.Answer != "" {
			t.Errorf("%v: got %d %+v", tc.err, rec.Code, resp)
		}
		if strings.Contains(rec.Body.String(), "/srv/docs") || strings.Contains(rec.Body.String(), "sk-123") {
			t.Errorf("internal detail leaked: %s", rec.Body.String())
		}
	}
}

func TestChat_BadBody(t *testing.T) {
	a := &fakeAnswerer{}
	s := New(a, nil)
	rec, resp := postChat(t, s, `{"question":`)
	if rec.Code != http.StatusBadRequest || resp.Error == "" {
		t.Errorf("expected 400 with error, got %d %+v", rec.Code, resp)
	}
	if len(a.asked) != 0 {
		t.Errorf("answerer should not be called, got %v", a.asked)
	}
}

func TestReadyz(t *testing.T) {
	idx := &fakeIndex{state: index.Building}
	s := New(&fakeAnswerer{}, idx)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "building") {
		t.Errorf("expected 503 building, got %d %s", rec.Code, rec.Body.String())
	}

	idx.state = index.Ready
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	s := New(&fakeAnswerer{}, nil)
	for _, path := range []string{"/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func dialWS(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocket_SendMessage(t *testing.T) {
	conn := dialWS(t, New(&fakeAnswerer{answer: "ok"}, nil))

	for _, q := range []string{"primera", "segunda"} {
		if err := conn.WriteJSON(wsRequest{Action: ActionSendMessage, Query: q}); err != nil {
			t.Fatal(err)
		}
		var resp answerResponse
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Answer != "ok: "+q {
			t.Errorf("unexpected response %+v", resp)
		}
	}
}

func TestWebSocket_Errors(t *testing.T) {
	conn := dialWS(t, New(&fakeAnswerer{err: errors.Join(domain.ErrEmptyCorpus, errors.New("dir /x"))}, nil))

	if err := conn.WriteJSON(wsRequest{Action: "subscribe"}); err != nil {
		t.Fatal(err)
	}
	var resp answerResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Error, "unsupported action") {
		t.Errorf("expected unsupported action, got %+v", resp)
	}

	if err := conn.WriteJSON(wsRequest{Action: ActionSendMessage, Query: "q"}); err != nil {
		t.Fatal(err)
	}
	resp = answerResponse{}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != MsgProcessingError {
		t.Errorf("expected generic error, got %+v", resp)
	}
}
