// Package server exposes the orchestration tools over HTTP (echo) and
// streams lifecycle events over a websocket.
//
// Routes:
//
//	POST /v1/orchestrate             orchestrate
//	GET  /v1/runs?active=true        orchestrate.list
//	POST /v1/runs/:target/kill       orchestrate.kill
//	GET  /v1/runs/history?limit=20   orchestrate.history
//	GET  /v1/usage                   usage blurb
//	GET  /v1/agents                  agent catalog
//	GET  /v1/events?types=a,b        websocket event stream
//	GET  /health
//
// Bodies are the tool Result envelope. HTTP callers start runs at depth 0.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/engine"
	"github.com/hupe1980/runmesh/events"
	"github.com/hupe1980/runmesh/logging"
	"github.com/hupe1980/runmesh/tool"
)

// Options configures a Server.
type Options struct {
	// Catalog backs GET /v1/agents. Optional.
	Catalog core.Catalog

	PingInterval time.Duration
	WriteTimeout time.Duration
	ReadTimeout  time.Duration

	// EventBuffer is the per-connection subscription buffer.
	EventBuffer int

	Logger logging.Logger
}

// Server handles HTTP requests.
type Server struct {
	engine   *engine.Engine
	tools    *tool.Set
	bus      *events.Bus
	upgrader websocket.Upgrader
	echo     *echo.Echo
	opts     Options
}

// New creates a Server. tools must contain the orchestration tools; bus may
// be nil, in which case /v1/events is not registered.
func New(eng *engine.Engine, tools *tool.Set, bus *events.Bus, optFns ...func(o *Options)) *Server {
	opts := Options{
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  60 * time.Second,
		EventBuffer:  events.DefaultBuffer,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	s := &Server{
		engine: eng,
		tools:  tools,
		bus:    bus,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	s.RegisterRoutes(e)
	s.echo = e

	return s
}

// Echo returns the configured echo instance.
func (s *Server) Echo() *echo.Echo { return s.echo }

// RegisterRoutes registers routes with the echo server.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/orchestrate", s.Orchestrate)
	e.GET("/v1/runs", s.ListRuns)
	e.GET("/v1/runs/history", s.History)
	e.POST("/v1/runs/:target/kill", s.KillRun)
	e.GET("/v1/usage", s.Usage)
	e.GET("/v1/agents", s.ListAgents)

	if s.bus != nil {
		e.GET("/v1/events", s.Events)
	}

	e.GET("/health", s.Health)
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.opts.Logger.Info("server.start", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Health returns health status.
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "healthy",
		"active_runs": s.engine.Runs().ActiveCount(),
	})
}

// Orchestrate handles POST /v1/orchestrate.
func (s *Server) Orchestrate(c echo.Context) error {
	var args map[string]any
	if err := c.Bind(&args); err != nil {
		return s.respond(c, tool.Fail(core.NewError(core.CodeValidation, "invalid JSON body")))
	}

	res := s.invoke(c, tool.OrchestrateName, args)
	if _, ok := res.Data.(*engine.Accepted); ok {
		return c.JSON(http.StatusAccepted, res)
	}
	return s.respond(c, res)
}

// ListRuns handles GET /v1/runs.
func (s *Server) ListRuns(c echo.Context) error {
	args := map[string]any{}
	if v := c.QueryParam("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return s.respond(c, tool.Fail(core.NewError(core.CodeValidation, "active must be a boolean")))
		}
		args["active"] = active
	}
	return s.respond(c, s.invoke(c, tool.ListName, args))
}

// KillRun handles POST /v1/runs/:target/kill.
func (s *Server) KillRun(c echo.Context) error {
	return s.respond(c, s.invoke(c, tool.KillName, map[string]any{"target": c.Param("target")}))
}

// History handles GET /v1/runs/history.
func (s *Server) History(c echo.Context) error {
	args := map[string]any{}
	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return s.respond(c, tool.Fail(core.NewError(core.CodeValidation, "limit must be an integer")))
		}
		args["limit"] = limit
	}
	return s.respond(c, s.invoke(c, tool.HistoryName, args))
}

// Usage handles GET /v1/usage.
func (s *Server) Usage(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"usage": s.engine.Usage()})
}

// ListAgents handles GET /v1/agents.
func (s *Server) ListAgents(c echo.Context) error {
	if s.opts.Catalog == nil {
		return c.JSON(http.StatusOK, tool.OK([]core.AgentSpec{}))
	}
	return c.JSON(http.StatusOK, tool.OK(s.opts.Catalog.List()))
}

func (s *Server) invoke(c echo.Context, name string, args map[string]any) tool.Result {
	tc := core.NewToolContext(c.Request().Context(), func(o *core.ToolContextOptions) {
		o.Logger = s.opts.Logger
	})
	return s.tools.Invoke(tc, name, args)
}

func (s *Server) respond(c echo.Context, res tool.Result) error {
	if res.OK {
		return c.JSON(http.StatusOK, res)
	}
	return c.JSON(StatusFor(res.Error.Code), res)
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code string) int {
	switch core.Code(code) {
	case core.CodeValidation:
		return http.StatusBadRequest
	case core.CodeNotFound:
		return http.StatusNotFound
	case core.CodeNotActive:
		return http.StatusConflict
	case core.CodeConcurrencyLimit:
		return http.StatusTooManyRequests
	case core.CodePolicyDenied:
		return http.StatusForbidden
	case core.CodeNoLLM:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
