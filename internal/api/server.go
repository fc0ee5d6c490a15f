package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pocsuite/internal/advisory"
	"pocsuite/internal/poc"
	"pocsuite/internal/scanner"
	"pocsuite/internal/utils"
)

// Server 对外提供资产发现与POC执行的HTTP接口
type Server struct {
	registry     *poc.Registry
	orchestrator *poc.Orchestrator
	// db 可为空，为空时不返回公告与建议
	db       *advisory.Database
	scanOpts scanner.Options
	logger   *utils.Logger
}

func NewServer(registry *poc.Registry, orchestrator *poc.Orchestrator, db *advisory.Database, scanOpts scanner.Options) *Server {
	return &Server{
		registry:     registry,
		orchestrator: orchestrator,
		db:           db,
		scanOpts:     scanOpts,
		logger:       utils.NewLogger("api"),
	}
}

// Router 注册全部路由
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	api := router.Group("/api")
	api.GET("/pocs", s.ListPocs)
	api.GET("/pocs/search", s.SearchPocs)
	api.GET("/pocs/:name", s.GetPoc)
	api.POST("/discover", s.Discover)
	api.POST("/run", s.RunPoc)

	return router
}

// Serve 监听 addr 直到 ctx 结束，随后优雅关闭
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API服务监听 %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("正在关闭API服务...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Debug("%s %s -> %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
	}
}
