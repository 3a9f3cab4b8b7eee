// Package http exposes board lifecycle management and HTTP-triggered
// execution over echo (github.com/labstack/echo/v4), adapted in place
// from cmd/orchestrator's echo setup (setupEcho/
// setupMiddleware/registerRoutes in cmd/orchestrator/main.go) and its
// routes/handlers split (cmd/orchestrator/routes/run.go,
// cmd/orchestrator/handlers/run.go): one handler struct per resource
// group, registered onto route groups carrying that same
// middleware stack. Board event triggers are guarded by the
// service-wide rate limit (RateLimiter.CheckGlobalLimit), not a
// per-user one.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lyzr/flowengine/flow/board"
	execctx "github.com/lyzr/flowengine/flow/context"
	"github.com/lyzr/flowengine/flow/release"
	"github.com/lyzr/flowengine/flow/scheduler"
	"github.com/lyzr/flowengine/flow/value"
	"github.com/lyzr/flowengine/internal/cache"
	"github.com/lyzr/flowengine/internal/ratelimit"
)

// boardReadCacheTTL bounds how stale a cached read-only board GET may
// be; writes (createVersion, deleteBoard) invalidate the entry directly
// rather than waiting this out.
const boardReadCacheTTL = 5 * time.Second

// Logger is the minimal surface this package needs, satisfied by
// *internal/logger.Logger.
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Publisher is the narrow event-fan-out surface this package needs,
// satisfied by internal/queue.Queue -- every run triggered over HTTP
// publishes its terminal status onto the "run_completed" topic, the
// generalization of workflow_lifecycle.EventPublisher
// from a workflow-tier event to a board-run-tier one.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, message []byte) error
}

// Server wires board CRUD and event-triggered execution onto an echo
// instance, grounded in server.Server (graceful-shutdown
// http.Server wrapper) but delegating the listen loop to echo's own
// Start/Shutdown, the way cmd/orchestrator/main.go's startServer does.
type Server struct {
	boards    *board.Service
	scheduler *scheduler.Scheduler
	releases  *release.Registry
	limiter   *ratelimit.RateLimiter
	services  execctx.Services
	cache     cache.Cache
	publisher Publisher
	log       Logger

	echo *echo.Echo
}

// New builds the echo application. limiter may be nil, which disables
// rate limiting entirely (e.g. local development); boardCache and
// publisher may be nil, which disables the read-through board cache and
// the run-completed fan-out respectively.
func New(boards *board.Service, sched *scheduler.Scheduler, releases *release.Registry, limiter *ratelimit.RateLimiter, services execctx.Services, boardCache cache.Cache, publisher Publisher, log Logger) *Server {
	s := &Server{
		boards:    boards,
		scheduler: sched,
		releases:  releases,
		limiter:   limiter,
		services:  services,
		cache:     boardCache,
		publisher: publisher,
		log:       log,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": "flowengine"})
	})

	boardRoutes := e.Group("/api/v1/boards")
	{
		boardRoutes.POST("", s.createBoard)
		boardRoutes.GET("/:id", s.getBoard)
		boardRoutes.DELETE("/:id", s.deleteBoard)
		boardRoutes.POST("/:id/versions", s.createVersion)
		boardRoutes.GET("/:id/versions", s.listVersions)
	}

	events := e.Group("/api/v1/boards/:id/events/:event")
	events.Use(s.rateLimitMiddleware)
	events.POST("", s.triggerEvent)

	boardRoutes.POST("/:id/callbacks/:node", s.deliverCallback)

	s.echo = e
	return s
}

// Echo exposes the underlying echo instance so other transports (e.g.
// transport/chat's WebSocket upgrade route) can mount onto the same
// listener instead of each opening their own.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Start runs the echo server until the process receives a shutdown
// signal or ListenAndServe fails, mirroring
// cmd/orchestrator/main.go's startServer.
func (s *Server) Start(addr string) error {
	s.log.Info("flowengine http transport starting", "addr", addr)
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http transport: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests, the echo-native
// equivalent of server.Server.Start's select-on-signal
// shutdown branch (same 30s grace window).
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

type createBoardRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) createBoard(c echo.Context) error {
	var req createBoardRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if req.ID == "" || req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id and name are required")
	}

	b, err := s.boards.CreateBoard(c.Request().Context(), req.ID, req.Name)
	if err != nil {
		s.log.Error("create board failed", "board_id", req.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create board")
	}
	return c.JSON(http.StatusCreated, b)
}

func (s *Server) getBoard(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, boardCacheKey(id)); err == nil && ok {
			return c.JSONBlob(http.StatusOK, data)
		}
	}

	b, err := s.boards.OpenBoard(ctx, id, true)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "board not found")
	}

	data, err := json.Marshal(b)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to encode board")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, boardCacheKey(id), data, boardReadCacheTTL); err != nil {
			s.log.Error("board cache set failed", "board_id", id, "error", err)
		}
	}
	return c.JSONBlob(http.StatusOK, data)
}

func (s *Server) deleteBoard(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := s.boards.DeleteBoard(ctx, id); err != nil {
		s.log.Error("delete board failed", "board_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete board")
	}
	if s.cache != nil {
		s.cache.Delete(ctx, boardCacheKey(id))
	}
	return c.NoContent(http.StatusNoContent)
}

func boardCacheKey(id string) string { return "board:" + id }

type createVersionRequest struct {
	Kind string `json:"kind"`
}

func (s *Server) createVersion(c echo.Context) error {
	id := c.Param("id")
	var req createVersionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	v, err := s.boards.CreateVersion(c.Request().Context(), id, board.VersionKind(req.Kind))
	if err != nil {
		s.log.Error("create version failed", "board_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create version")
	}
	if s.cache != nil {
		s.cache.Delete(c.Request().Context(), boardCacheKey(id))
	}
	return c.JSON(http.StatusCreated, v)
}

func (s *Server) listVersions(c echo.Context) error {
	id := c.Param("id")
	versions, err := s.boards.GetVersions(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list versions")
	}
	return c.JSON(http.StatusOK, versions)
}

// triggerEvent finds the board's start node matching :event (its
// registered node Name, e.g. "http_event") and drives a run from it,
// resolving the requested release channel first if one was given.
func (s *Server) triggerEvent(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	event := c.Param("event")
	channel := c.QueryParam("channel")

	b, err := s.resolveBoard(ctx, id, channel)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	startNodeID, err := findStartNode(b, event)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	payload, err := httpPayload(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result := s.scheduler.Run(ctx, b, startNodeID, payload, false, s.services)
	s.publishCompletion(ctx, id, result)
	if result.Status == scheduler.StatusFailed {
		s.log.Error("event run failed", "board_id", id, "event", event, "error", result.Err)
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("run failed: %v", result.Err))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": result.Status,
		"traces": result.Traces,
	})
}

// deliverCallback resumes a suspended async-callback node (e.g.
// "push_tool_output"), the direct generalization of a
// hitl-worker response-stream handler: where that worker decremented a
// pending-approval counter and republished a completion event off a
// Redis stream, this endpoint runs the board directly with the
// scheduler's delegated flag set, since this engine has no separate
// worker tier to hand the resumption off to.
func (s *Server) deliverCallback(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	nodeID := c.Param("node")

	b, err := s.boards.OpenBoard(ctx, id, true)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "board not found")
	}

	b.RLock()
	_, ok := b.Nodes[nodeID]
	b.RUnlock()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "board has no such node")
	}

	var req struct {
		CallID string      `json:"call_id"`
		Output interface{} `json:"output"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	payload := value.Map(map[string]value.Value{
		"call_id": value.String(req.CallID),
		"output":  value.FromNative(req.Output),
	})

	result := s.scheduler.Run(ctx, b, nodeID, payload, true, s.services)
	s.publishCompletion(ctx, id, result)
	if result.Status == scheduler.StatusFailed {
		s.log.Error("callback delivery failed", "board_id", id, "node_id", nodeID, "error", result.Err)
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("run failed: %v", result.Err))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": result.Status,
		"traces": result.Traces,
	})
}

func (s *Server) publishCompletion(ctx context.Context, boardID string, result *scheduler.Result) {
	if s.publisher == nil {
		return
	}
	data, err := json.Marshal(map[string]interface{}{
		"board_id": boardID,
		"status":   result.Status,
	})
	if err != nil {
		return
	}
	if err := s.publisher.Publish(ctx, "run_completed", boardID, data); err != nil {
		s.log.Error("publish run_completed failed", "board_id", boardID, "error", err)
	}
}

// resolveBoard opens the board's mutable draft when no release channel
// is requested, or the specific version a channel currently points at
// otherwise.
func (s *Server) resolveBoard(ctx context.Context, id, channel string) (*board.Board, error) {
	if channel == "" {
		return s.boards.OpenBoard(ctx, id, true)
	}
	if s.releases == nil {
		return nil, fmt.Errorf("no release registry configured")
	}
	v, err := s.releases.Resolve(id, channel, "")
	if err != nil {
		return nil, fmt.Errorf("resolve release channel %q: %w", channel, err)
	}
	return s.boards.OpenVersion(ctx, id, v)
}

func findStartNode(b *board.Board, event string) (string, error) {
	b.RLock()
	defer b.RUnlock()
	for id, n := range b.Nodes {
		if n.Start && n.Name == event {
			return id, nil
		}
	}
	return "", fmt.Errorf("board has no start node for event %q", event)
}

// httpPayload builds a board-runnable value.Value out of the inbound
// HTTP request: method, path, headers, query and a best-effort JSON
// body, the same "method/path/body in, status/response out" shape
// flow/catalog's HTTPEvent node expects.
func httpPayload(c echo.Context) (value.Value, error) {
	var body map[string]value.Value
	if err := c.Bind(&body); err != nil {
		// A non-JSON or empty body is fine for an event trigger; only a
		// malformed JSON body with content is an actual client error.
		if c.Request().ContentLength > 0 {
			return value.Null(), err
		}
		body = map[string]value.Value{}
	}

	headers := map[string]value.Value{}
	for k := range c.Request().Header {
		headers[k] = value.String(c.Request().Header.Get(k))
	}

	return value.Map(map[string]value.Value{
		"method":  value.String(c.Request().Method),
		"path":    value.String(c.Request().URL.Path),
		"headers": value.Map(headers),
		"body":    value.Map(body),
		"sub":     value.String(c.Request().Header.Get("X-User-ID")),
	}), nil
}

func (s *Server) rateLimitMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.limiter == nil {
			return next(c)
		}
		res, err := s.limiter.CheckGlobalLimit(c.Request().Context(), 100, 60)
		if err != nil {
			s.log.Error("rate limit check failed", "error", err)
			return next(c)
		}
		if !res.Allowed {
			c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", res.RetryAfterSeconds))
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		}
		return next(c)
	}
}
