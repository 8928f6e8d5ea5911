package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router holds all handlers
type Router struct {
	meeting  *Meeting
	ops      *Ops
	gatherer prometheus.Gatherer
}

// NewRouter creates a new router with all handlers; gatherer may be nil to disable /metrics
func NewRouter(meeting *Meeting, ops *Ops, gatherer prometheus.Gatherer) *Router {
	return &Router{
		meeting:  meeting,
		ops:      ops,
		gatherer: gatherer,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	e.GET("/health", rt.ops.Health)
	if rt.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{})))
	}

	// API v1 group
	v1 := e.Group("/v1")

	rt.setupMeetingRoutes(v1)
	rt.setupQueueRoutes(v1)
	v1.POST("/briefs", rt.meeting.Brief)

	e.RouteNotFound("/*", rt.notFound)
}

// setupMeetingRoutes configures per-meeting pipeline routes
func (rt *Router) setupMeetingRoutes(g *echo.Group) {
	meetings := g.Group("/meetings")

	meetings.GET("/:id/status", rt.meeting.Status)
	meetings.POST("/:id/transcribe", rt.meeting.Transcribe)
	meetings.POST("/:id/analyze", rt.meeting.Analyze)
	meetings.POST("/:id/quiz", rt.meeting.Quiz)
}

// setupQueueRoutes configures queue inspection routes
func (rt *Router) setupQueueRoutes(g *echo.Group) {
	g.GET("/queue/dead", rt.ops.DeadLetters)
}

func (rt *Router) notFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, map[string]interface{}{
		"error":  "route not found",
		"path":   c.Request().URL.Path,
		"method": c.Request().Method,
	})
}
