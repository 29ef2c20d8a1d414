package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/cors"

	"formula-gateway/internal/config"
	"formula-gateway/internal/formula"
	"formula-gateway/internal/invoker"
	"formula-gateway/internal/translator"
)

const (
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	idleTimeout         = 120 * time.Second
	writeTimeoutSlack   = 30 * time.Second
)

type Server struct {
	cfg          config.Config
	service      *formula.Service
	app          *echo.Echo
	address      string
	writeTimeout time.Duration
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, svc *formula.Service) (*Server, error) {
	if svc == nil {
		return nil, errors.New("formula service must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = jsonErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Pre(echo.WrapMiddleware(newCORS().Handler))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; form-action 'none'",
	}))

	budget := max(invoker.PolicyFrom(cfg.Generator).Budget(), invoker.PolicyFrom(cfg.Assistant).Budget())

	srv := &Server{
		cfg:          cfg,
		service:      svc,
		app:          e,
		address:      fmt.Sprintf(":%d", cfg.Server.Port),
		writeTimeout: budget + writeTimeoutSlack,
	}

	srv.registerRoutes()

	return srv, nil
}

func newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type", "X-User-Id", "X-Auth-Token"},
		MaxAge:               86400,
		OptionsSuccessStatus: http.StatusOK,
	})
}

// Handler exposes the routed application, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg.Server.Port)
	slog.Info("starting server", "addr", s.address, "write_timeout", s.writeTimeout.String())

	httpServer := &http.Server{
		Addr:         s.address,
		ReadTimeout:  readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.Any("/convert-formula", postOnly(s.handleConvertFormula))
	s.app.Any("/formula-assistant", postOnly(s.handleFormulaAssistant))
	s.app.Any("/process-excel", postOnly(s.handleProcessExcel))
}

// postOnly answers bare OPTIONS requests with 200 and rejects every other
// method except POST.
func postOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		switch c.Request().Method {
		case http.MethodOptions:
			return c.NoContent(http.StatusOK)
		case http.MethodPost:
			return next(c)
		default:
			return requestError{Status: http.StatusMethodNotAllowed, Message: "Method not allowed"}
		}
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConvertFormula(c echo.Context) error {
	var req translator.FormulaRequest
	if err := s.decodeRequestBody(c, &req); err != nil {
		return err
	}

	payload, err := s.service.Generate(c.Request().Context(), req.ToQuery())
	if err != nil {
		return toHTTPError(styleGenerator, err)
	}

	return c.JSON(http.StatusOK, translator.FromGenerator(payload, requestID(c)))
}

func (s *Server) handleFormulaAssistant(c echo.Context) error {
	var req translator.FormulaRequest
	if err := s.decodeRequestBody(c, &req); err != nil {
		return err
	}

	payload, err := s.service.Converse(c.Request().Context(), req.ToQuery(), req.History())
	if err != nil {
		return toHTTPError(styleAssistant, err)
	}

	return c.JSON(http.StatusOK, translator.FromAssistant(payload, requestID(c)))
}

func (s *Server) handleProcessExcel(c echo.Context) error {
	var req translator.FormulaRequest
	if err := s.decodeRequestBody(c, &req); err != nil {
		return err
	}

	if strings.TrimSpace(req.Query) == "" || strings.TrimSpace(req.File) == "" {
		return requestError{Status: http.StatusBadRequest, Message: "Missing file or query"}
	}
	file, err := req.DecodeFile()
	if err != nil {
		return requestError{Status: http.StatusBadRequest, Message: "Invalid file encoding"}
	}

	query := req.ToQuery()
	res, err := s.service.Process(c.Request().Context(), file, query)
	if err != nil {
		return toHTTPError(styleGenerator, err)
	}

	return c.JSON(http.StatusOK, translator.FromProcess(res.File, res.Payload, res.Rejected, requestID(c)))
}

func (s *Server) decodeRequestBody(c echo.Context, target *translator.FormulaRequest) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, s.cfg.Server.MaxBodyBytes)

	body, err := io.ReadAll(req.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return requestError{Status: http.StatusRequestEntityTooLarge, Message: "Request body too large"}
		}
		return requestError{Status: http.StatusBadRequest, Message: "Invalid JSON body"}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		// An empty body is an empty request; the query check rejects it.
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return requestError{Status: http.StatusBadRequest, Message: "Invalid JSON body"}
	}
	return nil
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

func printStartupBanner(port int) {
	host := "127.0.0.1"
	fmt.Println()
	fmt.Println("formula-gateway ready")
	fmt.Printf("Listening on http://%s:%d\n", host, port)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  POST /convert-formula")
	fmt.Println("  POST /formula-assistant")
	fmt.Println("  POST /process-excel")
	fmt.Printf("Example:\n  curl http://%s:%d/convert-formula -H 'Content-Type: application/json' -d '{\"query\":\"sum of column A\",\"language\":\"en\"}'\n\n", host, port)
}
