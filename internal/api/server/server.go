package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"story-palace/internal/api/handlers"
	"story-palace/internal/api/middleware"
	"story-palace/internal/catalog"
	"story-palace/internal/config"
	"story-palace/internal/pkg/logger"
	"story-palace/internal/screen"
)

type Server struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	screen  *screen.Screen
	history handlers.HistoryReader
	log     *logger.Logger
	router  *gin.Engine
}

func New(cfg *config.Config, cat *catalog.Catalog, scr *screen.Screen, history handlers.HistoryReader, log *logger.Logger) *Server {
	if cfg.Log.Mode != "development" {
		gin.SetMode(gin.ReleaseMode) // Set to Release for production
	}

	s := &Server{
		cfg:     cfg,
		catalog: cat,
		screen:  scr,
		history: history,
		log:     log,
		router:  gin.New(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery(), middleware.SilentLogger(s.log))

	// CORS Configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}

	// "Authorization" must be allowed so the frontend can send the JWT
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}

	s.router.Use(cors.New(corsConfig))
}

func (s *Server) setupRoutes() {
	catalogHandler := handlers.NewCatalogHandler(s.catalog)
	screenHandler := handlers.NewScreenHandler(s.screen)

	// Health Check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "story-palace"})
	})

	v1 := s.router.Group("/api/v1")
	if secret := s.cfg.API.JWTSecret; secret != "" {
		v1.Use(middleware.RequireAuth([]byte(secret), s.log))
	} else {
		s.log.Warn("⚠️ api.jwt_secret is empty, control API is unauthenticated")
	}
	{
		v1.GET("/catalog", catalogHandler.GetCatalog)

		v1.GET("/screen", screenHandler.GetScreen)
		v1.POST("/screen/events", screenHandler.PostEvent)
		v1.GET("/screen/stream", screenHandler.Stream)

		if s.history != nil {
			historyHandler := handlers.NewHistoryHandler(s.history)
			v1.GET("/history", historyHandler.GetHistory)
		}
	}
}

// Start runs the server on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("🚀 API Server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
