package server

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/oarkflow/log"

	"github.com/oarkflow/script"
	"github.com/oarkflow/script/ast"
	"github.com/oarkflow/script/errs"
	"github.com/oarkflow/script/lexer"
	"github.com/oarkflow/script/parser"
)

const defaultHistorySize = 100

type Config struct {
	Version     string
	HistorySize int
	Logger      *log.Logger
	// Options apply to every run.
	Options []script.Option
	// DisableRequestLog turns off the per-request access log.
	DisableRequestLog bool
}

type Server struct {
	app    *fiber.App
	config Config
	logger *log.Logger

	mu         sync.RWMutex
	executions []ExecutionSummary
}

type ExecutionSummary struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	OutputLines int           `json:"outputLines"`
	StartTime   time.Time     `json:"startTime"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

type SourceRequest struct {
	Source  string         `json:"source"`
	Globals map[string]any `json:"globals,omitempty"`
}

type ErrorDetail struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

type RunResponse struct {
	ID       string         `json:"id"`
	Value    any            `json:"value"`
	Globals  map[string]any `json:"globals"`
	Output   []string       `json:"output"`
	Duration float64        `json:"duration"`
	Errors   []ErrorDetail  `json:"errors,omitempty"`
}

type ParseResponse struct {
	Valid  bool          `json:"valid"`
	Errors []ErrorDetail `json:"errors"`
	AST    string        `json:"ast,omitempty"`
}

func NewServer(cfg Config) *Server {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	if cfg.Logger == nil {
		cfg.Logger = &log.DefaultLogger
	}
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})
	server := &Server{
		app:        app,
		config:     cfg,
		logger:     cfg.Logger,
		executions: []ExecutionSummary{},
	}
	server.setupRoutes()
	return server
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) setupRoutes() {
	s.app.Use(cors.New())
	if !s.config.DisableRequestLog {
		s.app.Use(logger.New())
	}

	s.app.Get("/api/health", s.healthHandler)

	s.app.Post("/api/run", s.runHandler)
	s.app.Post("/api/parse", s.parseHandler)
	s.app.Post("/api/tokens", s.tokensHandler)

	s.app.Get("/api/runs", s.getRunsHandler)
	s.app.Get("/api/runs/:id", s.getRunHandler)
}

func (s *Server) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   s.config.Version,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) parseSource(c *fiber.Ctx) (SourceRequest, error) {
	var req SourceRequest
	if err := c.BodyParser(&req); err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Source) == "" {
		return req, fiber.NewError(fiber.StatusBadRequest, "Source cannot be empty")
	}
	return req, nil
}

func (s *Server) runHandler(c *fiber.Ctx) error {
	req, err := s.parseSource(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	result, err := script.Exec(ctx, req.Source, req.Globals, s.config.Options...)

	summary := ExecutionSummary{StartTime: start, Status: "completed"}
	response := RunResponse{}
	if result != nil {
		summary.ID = result.ID
		summary.OutputLines = len(result.Output)
		summary.Duration = result.Duration
		response = RunResponse{
			ID:       result.ID,
			Value:    result.Value,
			Globals:  result.Globals,
			Output:   result.Output,
			Duration: result.Duration.Seconds(),
		}
	}
	if err != nil {
		summary.Status = "failed"
		summary.Error = err.Error()
		response.Errors = errorDetails(err)
	}
	s.record(summary)

	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(response)
	}
	return c.JSON(response)
}

func (s *Server) parseHandler(c *fiber.Ctx) error {
	req, err := s.parseSource(c)
	if err != nil {
		return err
	}
	program, err := parser.Parse(req.Source)
	if err != nil {
		return c.JSON(ParseResponse{Valid: false, Errors: errorDetails(err)})
	}
	return c.JSON(ParseResponse{Valid: true, Errors: []ErrorDetail{}, AST: ast.Dump(program)})
}

func (s *Server) tokensHandler(c *fiber.Ctx) error {
	req, err := s.parseSource(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"tokens": lexer.Dump(req.Source)})
}

func (s *Server) getRunsHandler(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.JSON(append([]ExecutionSummary(nil), s.executions...))
}

func (s *Server) getRunHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.executions {
		if e.ID == id {
			return c.JSON(e)
		}
	}
	return fiber.NewError(fiber.StatusNotFound, "run not found: "+id)
}

func (s *Server) record(summary ExecutionSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions = append(s.executions, summary)
	if over := len(s.executions) - s.config.HistorySize; over > 0 {
		s.executions = append([]ExecutionSummary(nil), s.executions[over:]...)
	}
}

func errorDetails(err error) []ErrorDetail {
	var list errs.List
	if errors.As(err, &list) {
		out := make([]ErrorDetail, len(list))
		for i, e := range list {
			out[i] = detail(e)
		}
		return out
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return []ErrorDetail{detail(e)}
	}
	return []ErrorDetail{{Message: err.Error()}}
}

func detail(e *errs.Error) ErrorDetail {
	return ErrorDetail{
		Kind:    string(e.Kind),
		Message: e.Message,
		Line:    e.Pos.Line,
		Column:  e.Pos.Column,
	}
}

func (s *Server) Start(addr string) error {
	s.logger.Info().Str("address", addr).Str("version", s.config.Version).Msg("starting script server")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	s.logger.Info().Msg("shutting down script server")
	return s.app.Shutdown()
}
