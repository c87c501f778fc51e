package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"stockadvisor/internal/database"
	"stockadvisor/internal/models"
	"stockadvisor/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type Analyzer interface {
	Analyse(ctx context.Context, req service.Request) (*models.Analysis, error)
	Usage() models.UsageStats
}

type HistoryStore interface {
	Ping(ctx context.Context) error
	ListAnalyses(ctx context.Context, limit int) ([]database.AnalysisRecord, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	analyzer Analyzer
	history  HistoryStore
	cache    Pinger
	log      *logrus.Logger
}

// NewHandler accepts a nil history and cache when the service runs without
// Postgres or Redis.
func NewHandler(a Analyzer, history HistoryStore, cache Pinger, log *logrus.Logger) *Handler {
	return &Handler{analyzer: a, history: history, cache: cache, log: log}
}

func (h *Handler) PostAnalyse(c *gin.Context) {
	var req service.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid analyse body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	res, err := h.analyzer.Analyse(c.Request.Context(), req)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			h.log.Warnf("rejected analyse request: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Msg})
		case errors.Is(err, service.ErrMarketDataNotConfigured):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is not configured: missing market data credentials"})
		case errors.Is(err, service.ErrMarketDataUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			h.log.Errorf("analyse failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id":      res.RequestID,
		"table_data":      res.Holdings,
		"advice":          res.Advice,
		"diversification": res.Diversification,
		"usage_stats":     res.Usage,
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.history != nil {
		body["database"] = h.ping(c.Request.Context(), "database", h.history)
	}
	if h.cache != nil {
		body["cache"] = h.ping(c.Request.Context(), "cache", h.cache)
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) ping(ctx context.Context, name string, p Pinger) string {
	if err := p.Ping(ctx); err != nil {
		h.log.Warnf("%s ping failed: %v", name, err)
		return "unavailable"
	}
	return "ok"
}

func (h *Handler) GetUsage(c *gin.Context) {
	c.JSON(http.StatusOK, h.analyzer.Usage())
}

func (h *Handler) GetAnalyses(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis history is not enabled"})
		return
	}
	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		limit = n
	}

	rows, err := h.history.ListAnalyses(c.Request.Context(), limit)
	if err != nil {
		h.log.Errorf("list analyses failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, rows)
}
