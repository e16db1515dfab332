package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/oniichan80000/image-resizer/internal/config"
	"github.com/oniichan80000/image-resizer/internal/handler"
	"github.com/oniichan80000/image-resizer/internal/service"
)

type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	log        *zap.Logger
}

func New(cfg *config.Config, intents service.IntentService, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	h := handler.NewHandler(intents, log)
	router := NewRouter(h)

	server := &Server{
		httpServer: &http.Server{
			Addr:           cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:        router,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		cfg: cfg,
		log: log,
	}

	log.Info("Server created",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port))

	return server
}

// NewRouter wires the pipeline routes. Responses carry permissive
// cross-origin headers since uploads come straight from browsers.
func NewRouter(h *handler.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	router.GET("/health", h.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/upload-url", h.CreateUploadURL)
		api.GET("/processed-url", h.GetProcessedURL)
	}

	return router
}

func (s *Server) Run() error {
	s.log.Info("Server is running", zap.String("address", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}
