package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guiyumin/vsniff/internal/core/capture"
	"github.com/guiyumin/vsniff/internal/core/extractor"
	"github.com/guiyumin/vsniff/internal/core/media"
	"github.com/guiyumin/vsniff/internal/core/publish"
	"github.com/guiyumin/vsniff/internal/core/version"
)

// DefaultWait is how long a sniff job keeps its page open
const DefaultWait = 15 * time.Second

// MaxWait caps wait_seconds
const MaxWait = 5 * time.Minute

// Response is the standard API response structure
type Response struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

// SniffRequest is the request body for POST /api/sniff
type SniffRequest struct {
	URL         string `json:"url" binding:"required"`
	WaitSeconds int    `json:"wait_seconds,omitempty"`
}

// ParseRequest is the request body for POST /api/parse
type ParseRequest struct {
	RequestURL string `json:"request_url" binding:"required"`
	Body       string `json:"body" binding:"required"`
}

// Options configure a Server
type Options struct {
	Port          int
	APIKey        string
	MaxConcurrent int

	// Registry runs parse requests and, through Sniff, captured exchanges
	Registry *extractor.Registry

	// Sniff runs sniff jobs. The relay publisher it receives gets every batch.
	Sniff func(relay *publish.Publisher) SniffFunc

	Logger *slog.Logger
}

// Server is the relay HTTP server for vsniff
type Server struct {
	port     int
	apiKey   string
	registry *extractor.Registry
	relay    *publish.Publisher
	jobQueue *JobQueue
	logger   *slog.Logger
	server   *http.Server
	engine   *gin.Engine
}

// NewServer creates a new HTTP server
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = extractor.DefaultRegistry()
	}

	s := &Server{
		port:     opts.Port,
		apiKey:   opts.APIKey,
		registry: reg,
		relay:    publish.New(logger),
		logger:   logger,
	}

	var sniff SniffFunc
	if opts.Sniff != nil {
		sniff = opts.Sniff(s.relay)
	} else {
		sniff = func(context.Context, string, time.Duration, func()) ([]media.Candidate, error) {
			return nil, fmt.Errorf("sniffing is not configured")
		}
	}
	s.jobQueue = NewJobQueue(opts.MaxConcurrent, sniff)
	s.engine = s.routes()

	return s
}

// Relay returns the publisher every sniff batch is forwarded to
func (s *Server) Relay() *publish.Publisher {
	return s.relay
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(s.loggingMiddleware())
	if s.apiKey != "" {
		engine.Use(s.authMiddleware())
	}

	api := engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/sniff", s.handleSniff)
	api.GET("/status/:id", s.handleStatus)
	api.GET("/jobs", s.handleGetJobs)
	api.DELETE("/jobs", s.handleClearJobs)
	api.DELETE("/jobs/:id", s.handleDeleteJob)
	api.POST("/parse", s.handleParse)
	api.GET("/rules", s.handleRules)
	api.GET("/events", s.handleEvents)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{
			Code:    404,
			Data:    nil,
			Message: "not found",
		})
	})

	return engine
}

// Start starts the job workers and the HTTP server
func (s *Server) Start() error {
	s.jobQueue.Start()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.port),
		Handler:     s.engine,
		ReadTimeout: 30 * time.Second,
		// no write timeout: /api/events streams
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting vsniff server", "port", s.port, "auth", s.apiKey != "")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.jobQueue.Stop()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Middleware

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		// Health endpoint doesn't require auth
		if path == "/api/health" || !strings.HasPrefix(path, "/api/") {
			c.Next()
			return
		}

		if c.GetHeader("X-API-Key") != s.apiKey {
			c.JSON(http.StatusUnauthorized, Response{
				Code:    401,
				Data:    nil,
				Message: "invalid or missing API key",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Handlers

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"status":      "ok",
			"version":     version.Version,
			"subscribers": s.relay.Len(),
		},
		Message: "everything is good",
	})
}

func (s *Server) handleSniff(c *gin.Context) {
	var req SniffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code:    400,
			Data:    nil,
			Message: "invalid request body: url is required",
		})
		return
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		c.JSON(http.StatusBadRequest, Response{
			Code:    400,
			Data:    nil,
			Message: "url must be http or https",
		})
		return
	}

	job, err := s.jobQueue.AddJob(req.URL, waitDuration(req.WaitSeconds))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, Response{
			Code:    503,
			Data:    nil,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"id":     job.ID,
			"status": job.Status,
		},
		Message: "sniff queued",
	})
}

func waitDuration(seconds int) time.Duration {
	if seconds <= 0 {
		return DefaultWait
	}
	d := time.Duration(seconds) * time.Second
	if d > MaxWait {
		return MaxWait
	}
	return d
}

func (s *Server) handleStatus(c *gin.Context) {
	job := s.jobQueue.GetJob(c.Param("id"))
	if job == nil {
		c.JSON(http.StatusNotFound, Response{
			Code:    404,
			Data:    nil,
			Message: "job not found",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    job,
		Message: string(job.Status),
	})
}

func (s *Server) handleGetJobs(c *gin.Context) {
	jobs := s.jobQueue.GetAllJobs()

	jobList := make([]gin.H, len(jobs))
	for i, job := range jobs {
		jobList[i] = gin.H{
			"id":         job.ID,
			"url":        job.URL,
			"status":     job.Status,
			"batches":    job.Batches,
			"candidates": len(job.Candidates),
			"error":      job.Error,
		}
	}

	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"jobs": jobList,
		},
		Message: fmt.Sprintf("%d jobs found", len(jobs)),
	})
}

func (s *Server) handleClearJobs(c *gin.Context) {
	count := s.jobQueue.ClearHistory()
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"cleared": count,
		},
		Message: fmt.Sprintf("%d jobs cleared", count),
	})
}

func (s *Server) handleDeleteJob(c *gin.Context) {
	id := c.Param("id")

	// Try to cancel active job first, then try to remove finished job
	if s.jobQueue.CancelJob(id) {
		c.JSON(http.StatusOK, Response{
			Code:    200,
			Data:    gin.H{"id": id},
			Message: "job cancelled",
		})
	} else if s.jobQueue.RemoveJob(id) {
		c.JSON(http.StatusOK, Response{
			Code:    200,
			Data:    gin.H{"id": id},
			Message: "job removed",
		})
	} else {
		c.JSON(http.StatusNotFound, Response{
			Code:    404,
			Data:    nil,
			Message: "job not found or cannot be cancelled/removed",
		})
	}
}

// ParseOutcome reports one rule's result for a parse request
type ParseOutcome struct {
	Rule       string `json:"rule"`
	Generic    bool   `json:"generic"`
	Candidates int    `json:"candidates"`
	Error      string `json:"error,omitempty"`
}

// handleParse replays a captured body through the registry. Found batches
// are also relayed to event subscribers.
func (s *Server) handleParse(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code:    400,
			Data:    nil,
			Message: "invalid request body: request_url and body are required",
		})
		return
	}
	if len(req.Body) > capture.MaxBodyBytes {
		c.JSON(http.StatusRequestEntityTooLarge, Response{
			Code:    413,
			Data:    nil,
			Message: capture.ErrBodyTooLarge.Error(),
		})
		return
	}

	ex := capture.Exchange{
		RequestURL:  req.RequestURL,
		ResolvedURL: req.RequestURL,
		Hostname:    media.Hostname(req.RequestURL),
		BodyText:    req.Body,
	}

	outcomes := s.registry.Dispatch(ex)
	report := make([]ParseOutcome, 0, len(outcomes))
	for _, out := range outcomes {
		po := ParseOutcome{Rule: out.Rule, Generic: out.Generic, Candidates: len(out.Candidates)}
		if out.Err != nil {
			po.Error = out.Err.Error()
		}
		report = append(report, po)
		s.relay.Publish(publish.Batch{Source: out.Rule, PageURL: req.RequestURL, Candidates: out.Candidates})
	}
	cands := extractor.Candidates(outcomes)

	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"hostname":   ex.Hostname,
			"outcomes":   report,
			"candidates": cands,
		},
		Message: fmt.Sprintf("%d candidates found", len(cands)),
	})
}

func (s *Server) handleRules(c *gin.Context) {
	rules := s.registry.Rules()
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    gin.H{"rules": rules},
		Message: fmt.Sprintf("%d rules registered", len(rules)),
	})
}
