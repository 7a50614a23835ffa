package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/vidstat-lab/vidstat/internal/answer"
	"github.com/vidstat-lab/vidstat/internal/intent"
)

type stubExecutor struct {
	value int64
	err   error
}

func (s *stubExecutor) ScalarInt(ctx context.Context, query string, params ...any) (int64, error) {
	return s.value, s.err
}

func newTestServer(t *testing.T, executor answer.Executor) *Server {
	t.Helper()
	parser, err := intent.NewParser(intent.LLMConfig{}, slog.Default())
	require.NoError(t, err)
	service := answer.NewService(parser, executor, slog.Default())
	return New(":0", nil, "release", service)
}

func TestAskReturnsIntegerAnswer(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{value: 123})

	body := strings.NewReader(`{"text": "Сколько всего видео есть в базе?"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", body)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	srv.Engine.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"answer": "123"}`, recorder.Body.String())
}

func TestAskUnanswerableQuestionIsZero(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{value: 5})

	body := strings.NewReader(`{"text": "Какая завтра погода?"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", body)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	srv.Engine.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"answer": "0"}`, recorder.Body.String())
}

func TestAskMissingQuestionIsBadRequest(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{})

	body := strings.NewReader(`{"question": "nope"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", body)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	srv.Engine.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestAskStorageFailureIsInternalErrorWithZeroBody(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{err: errors.New("connection refused")})

	body := strings.NewReader(`{"text": "Сколько всего видео есть в базе?"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", body)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	srv.Engine.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	require.JSONEq(t, `{"answer": "0"}`, recorder.Body.String())
}

func TestAskEchoesRequestID(t *testing.T) {
	srv := newTestServer(t, &stubExecutor{value: 1})

	body := strings.NewReader(`{"text": "Сколько всего видео есть в базе?"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-77")
	recorder := httptest.NewRecorder()
	srv.Engine.ServeHTTP(recorder, req)

	require.Equal(t, "req-77", recorder.Header().Get("X-Request-ID"))
}

func TestHealthWithDatabase(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	parser, err := intent.NewParser(intent.LLMConfig{}, slog.Default())
	require.NoError(t, err)
	srv := New(":0", db, "release", answer.NewService(parser, &stubExecutor{}, slog.Default()))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	srv.Engine.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), "healthy")
}

func TestHealthDatabaseUnreachable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("dial refused"))

	parser, err := intent.NewParser(intent.LLMConfig{}, slog.Default())
	require.NoError(t, err)
	srv := New(":0", db, "release", answer.NewService(parser, &stubExecutor{}, slog.Default()))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	srv.Engine.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}
