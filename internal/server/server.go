// Package server exposes the question-answering engine over HTTP and
// WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"healthrag/internal/domain"
	"healthrag/internal/index"
)

// User-facing messages. Internal error detail only goes to the logs.
const (
	MsgProcessingError = "Error processing your question"
	MsgMissingQuestion = "A question is required"
	MsgTimeout         = "The question took too long to answer, please try again"
)

// ActionSendMessage is the only WebSocket action understood by the server.
const ActionSendMessage = "sendmessage"

// Index is the subset of the lifecycle manager the server needs.
type Index interface {
	EnsureReady(ctx context.Context) error
	State() index.State
}

type chatRequest struct {
	Question string `json:"question"`
}

type wsRequest struct {
	Action string `json:"action"`
	Query  string `json:"query"`
}

type answerResponse struct {
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Server routes requests to an Answerer.
type Server struct {
	e        *echo.Echo
	answerer domain.Answerer
	index    Index
	logger   *slog.Logger
	upgrader websocket.Upgrader
	warmup   bool
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithWarmup builds the index in the background as soon as Start is called.
func WithWarmup(enabled bool) Option {
	return func(s *Server) { s.warmup = enabled }
}

// New builds the echo application. idx may be nil, in which case /readyz
// always reports ready.
func New(answerer domain.Answerer, idx Index, opts ...Option) *Server {
	s := &Server{
		answerer: answerer,
		index:    idx,
		logger:   slog.Default(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.HTTPErrorHandler = s.handleError

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/readyz", s.readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/api/chat", s.chat)
	e.GET("/ws", s.handleWS)
	s.e = e
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.e }

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	if s.warmup && s.index != nil {
		go func() {
			if err := s.index.EnsureReady(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("index warm-up failed", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- s.e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) readyz(c echo.Context) error {
	if s.index == nil {
		return c.JSON(http.StatusOK, map[string]string{"state": index.Ready.String()})
	}
	state := s.index.State()
	code := http.StatusOK
	if state != index.Ready {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]string{"state": state.String()})
}

func (s *Server) chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	answer, err := s.answerer.Ask(c.Request().Context(), req.Question)
	if err != nil {
		code, msg := classify(err)
		s.logger.Error("question failed",
			"transport", "http", "request_id", requestID(c), "status", code, "error", err)
		return c.JSON(code, answerResponse{Error: msg})
	}
	return c.JSON(http.StatusOK, answerResponse{Answer: answer})
}

// handleWS answers one sendmessage frame at a time until the peer closes.
func (s *Server) handleWS(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return nil
	}
	defer conn.Close()

	ctx := c.Request().Context()
	connID := requestID(c)
	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket closed", "request_id", connID, "error", err)
			}
			return nil
		}
		resp := s.answerFrame(ctx, connID, req)
		if err := conn.WriteJSON(resp); err != nil {
			s.logger.Debug("websocket write failed", "request_id", connID, "error", err)
			return nil
		}
	}
}

func (s *Server) answerFrame(ctx context.Context, connID string, req wsRequest) answerResponse {
	if req.Action != ActionSendMessage {
		return answerResponse{Error: fmt.Sprintf("unsupported action %q", req.Action)}
	}
	answer, err := s.answerer.Ask(ctx, req.Query)
	if err != nil {
		code, msg := classify(err)
		s.logger.Error("question failed",
			"transport", "websocket", "request_id", connID, "frame_id", uuid.NewString(), "status", code, "error", err)
		return answerResponse{Error: msg}
	}
	return answerResponse{Answer: answer}
}

func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := MsgProcessingError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	req := c.Request()
	s.logger.Warn("http error",
		"status", code, "method", req.Method, "path", req.URL.Path, "remote", c.RealIP(), "request_id", requestID(c), "error", err)
	if !c.Response().Committed {
		_ = c.JSON(code, answerResponse{Error: msg})
	}
}

// classify maps an engine error to a status code and a message safe to
// show to end users.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrEmptyQuestion):
		return http.StatusBadRequest, MsgMissingQuestion
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout, MsgTimeout
	default:
		return http.StatusInternalServerError, MsgProcessingError
	}
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}
