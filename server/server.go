// Package server 基于 gin 的抠图 HTTP 接口
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
	"github.com/sirupsen/logrus"

	"github.com/chaos-io/bgmatte/config"
	"github.com/chaos-io/bgmatte/matting"
	"github.com/chaos-io/bgmatte/util/logger"
)

const (
	HeaderFallback  = "X-Matte-Fallback"
	HeaderRequestID = "X-Request-Id"

	maxBatchImages = 32
)

type Server struct {
	engine     *gin.Engine
	proc       *matting.Processor
	cfg        config.ServerConfig
	aggressive bool
}

// New 创建路由，aggressive 为请求未指定 profile 时的默认值
func New(proc *matting.Processor, cfg config.ServerConfig, aggressive bool) *Server {
	s := &Server{
		engine:     gin.New(),
		proc:       proc,
		cfg:        cfg,
		aggressive: aggressive,
	}
	s.engine.Use(gin.Recovery(), requestLogger())
	s.engine.GET("/healthz", s.healthz)
	v1 := s.engine.Group("/v1")
	v1.POST("/matte", s.matte)
	v1.POST("/matte/batch", s.matteBatch)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 运行到 ctx 结束，然后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logrus.WithField("addr", s.cfg.Addr).Info("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	logrus.Info("http server shutting down")
	return errors.Wrap(srv.Shutdown(shutdownCtx), "shutdown")
}

// requestLogger 给每个请求分配 ksuid 并把带 request_id 的 entry 放进 ctx
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := ksuid.New().String()
		c.Header(HeaderRequestID, id)

		entry := logrus.WithFields(logrus.Fields{
			"request_id": id,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
		})
		c.Request = c.Request.WithContext(logger.WithLogEntry(c.Request.Context(), entry))

		c.Next()

		entry.WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start),
		}).Info("request")
	}
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
