package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"tradecast/internal/logger"
	"tradecast/internal/storage"
)

var (
	errBadUID    = errors.New("invalid message id")
	errBadBefore = errors.New("before must be RFC3339")
	errBadLimit  = errors.New("limit must be a positive integer")
)

// Server exposes stored narratives over HTTP for browsing.
type Server struct {
	router *gin.Engine
	store  *storage.Store
	http   *http.Server
}

func NewServer(store *storage.Store) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{router: router, store: store}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.health)

	api := s.router.Group("/api")
	{
		api.GET("/messages", s.listMessages)
		api.DELETE("/messages/:id", s.deleteMessage)
		api.GET("/portfolio", s.currentPortfolio)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves in the background and returns immediately.
func (s *Server) Start(addr string) {
	s.http = &http.Server{Addr: addr, Handler: s.router}
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(context.Background(), "web server stopped", err, "addr", addr)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listMessages(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(c, http.StatusBadRequest, errBadLimit)
			return
		}
		limit = n
	}
	var before time.Time
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(c, http.StatusBadRequest, errBadBefore)
			return
		}
		before = t
	}
	msgType := c.Query("type")

	msgs, err := s.store.Messages(c.Request.Context(), limit, before, msgType)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	out := make([]gin.H, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, gin.H{
			"id":        msg.ID,
			"content":   msg.Content,
			"timestamp": msg.Timestamp.Format(time.RFC3339),
			"type":      msg.Metadata["type"],
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": out, "count": len(out)})
}

func (s *Server) deleteMessage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, errBadUID)
		return
	}
	if err := s.store.DeleteMessage(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(c, http.StatusNotFound, err)
			return
		}
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) currentPortfolio(c *gin.Context) {
	positions, reportTime, ok, err := s.store.LastPortfolio(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"positions": []gin.H{}, "reportTime": nil})
		return
	}
	out := make([]gin.H, 0, len(positions))
	for _, pos := range positions {
		out = append(out, gin.H{
			"instrument":  pos.Instrument.String(),
			"quantity":    pos.Quantity,
			"costBasis":   pos.CostBasis,
			"marketPrice": pos.MarketPrice,
			"marketValue": pos.MarketValue(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"positions":  out,
		"reportTime": reportTime.Format(time.RFC3339),
	})
}

func writeError(c *gin.Context, status int, err error) {
	if err == nil {
		status = http.StatusInternalServerError
		err = errors.New("unknown error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
