package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"backtester/internal/domain"
	"backtester/internal/engine"
)

// RegisterRoutes registers all API routes on the given router.
func (s *Server) RegisterRoutes(r gin.IRoutes) {
	r.POST("/backtest", s.handleBacktest)
	r.GET("/strategies", s.handleStrategies)
	r.GET("/runs", s.handleListRuns)
	r.GET("/runs/:id", s.handleGetRun)
	r.GET("/healthz", s.handleHealth)
}

func (s *Server) handleBacktest(c *gin.Context) {
	var req engine.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ctx, cancel := s.requestContext(c.Request.Context())
	defer cancel()

	resp, err := s.engine.Run(ctx, req)
	if err != nil {
		s.log.Warn("backtest failed", "symbol", req.Symbol, "strategy", req.StrategyType, "error", err)
		writeError(c, statusFor(err), err.Error())
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": s.engine.Strategies()})
}

func (s *Server) handleListRuns(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := s.engine.ListRuns(c.Request.Context(), limit)
	if err != nil {
		writeError(c, statusFor(err), err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleGetRun(c *gin.Context) {
	run, err := s.engine.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, statusFor(err), err.Error())
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requestContext bounds a request by the configured timeout, if any.
func (s *Server) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout > 0 {
		return context.WithTimeout(parent, s.cfg.RequestTimeout)
	}
	return context.WithCancel(parent)
}

// statusFor maps engine errors to HTTP status codes. Data failures are client
// errors: the requested symbol or range has nothing to backtest.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidStrategy),
		errors.Is(err, domain.ErrDataUnavailable):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes {"detail": msg} with the given status.
func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}
