package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"MentionScanner/internal/domain"
	"MentionScanner/internal/usecase"
)

// Server exposes the read-only ops surface of the poller daemon:
// liveness and the latest cycle snapshot per platform. It is not the
// user-facing dashboard.
type Server struct {
	addr   string
	stats  *usecase.StatsRecorder
	logger *slog.Logger
	srv    *http.Server
}

// New builds the ops server around the cycle stats recorder.
func New(addr string, stats *usecase.StatsRecorder, logger *slog.Logger) *Server {
	return &Server{addr: addr, stats: stats, logger: logger}
}

type cycleView struct {
	Platform   string    `json:"platform"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Monitors   int       `json:"monitors"`
	Skipped    int       `json:"skipped"`
	Processed  int       `json:"processed"`
	NewResults int       `json:"new_results"`
	Errors     int       `json:"errors"`
	TimedOut   int       `json:"timed_out"`
}

// Start runs the HTTP listener until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealth)
	router.GET("/status", s.handleStatus)

	s.srv = &http.Server{Addr: s.addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("ops server listening", "addr", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	snapshot := s.stats.Snapshot()

	views := make([]cycleView, 0, len(snapshot))
	for _, platform := range domain.Platforms() {
		stats, ok := snapshot[platform]
		if !ok {
			continue
		}
		views = append(views, cycleView{
			Platform:   string(stats.Platform),
			StartedAt:  stats.StartedAt,
			DurationMS: stats.Duration.Milliseconds(),
			Monitors:   stats.Monitors,
			Skipped:    stats.Skipped,
			Processed:  stats.Processed,
			NewResults: stats.NewResults,
			Errors:     stats.Errors,
			TimedOut:   stats.TimedOut,
		})
	}

	c.JSON(http.StatusOK, gin.H{"cycles": views})
}
