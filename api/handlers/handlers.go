package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/devadigapratham/leveling3d/api/models"
	"github.com/devadigapratham/leveling3d/leveling"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// RequestIDHeader carries the id each request is logged under
const RequestIDHeader = "X-Request-ID"

// Executor runs mutating commands, either directly or through the journal
type Executor interface {
	Execute(cmd *models.Command) (*models.Result, error)
}

// LeaderChecker reports whether the write journal can accept commands
type LeaderChecker interface {
	Leader() bool
}

// Handler represents the API handlers
type Handler struct {
	Service  *leveling.Service
	Executor Executor
	Journal  LeaderChecker
	Metrics  *Metrics
	Logger   hclog.Logger
}

// NewHandler creates a new Handler. Commands run on the service directly
// unless an executor is set.
func NewHandler(service *leveling.Service, metrics *Metrics, logger hclog.Logger) *Handler {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Handler{
		Service:  service,
		Executor: service,
		Metrics:  metrics,
		Logger:   logger.Named("api"),
	}
}

// WithJournal routes commands through a journal node
func (h *Handler) WithJournal(node interface {
	Executor
	LeaderChecker
}) *Handler {
	h.Executor = node
	h.Journal = node
	return h
}

// JournalLeaderMiddleware rejects writes while the journal has no leader
func (h *Handler) JournalLeaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only apply to write operations
		if h.Journal != nil && c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			if !h.Journal.Leader() {
				h.fail(c, models.ErrNotLeader)
				c.Abort()
				return
			}
		}
		c.Next()
	}
}

// RequestLogger tags every request with an id, logs it and counts it
func (h *Handler) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		h.Metrics.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()

		log := h.Logger.Debug
		if status >= http.StatusInternalServerError {
			log = h.Logger.Warn
		}
		log("request",
			"id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
		)
	}
}

// Recover turns a panic into a JSON error envelope
func (h *Handler) Recover(c *gin.Context, recovered any) {
	h.Logger.Error("panic while handling request", "path", c.Request.URL.Path, "panic", recovered)
	h.failWith(c, fmt.Errorf("internal error: %v", recovered), "Internal server error.")
}

// EndpointNotFound answers every unknown method/path combination
func (h *Handler) EndpointNotFound(c *gin.Context) {
	h.fail(c, models.ErrEndpointNotFound)
}
