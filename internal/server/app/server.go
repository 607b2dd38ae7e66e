package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"netsift/internal/analyzer/dissect"
	"netsift/internal/analyzer/resolver"
	"netsift/internal/logging"
	"netsift/internal/server/api"
	"netsift/internal/server/storage"
	"netsift/internal/server/storage/duckdb"
	"netsift/internal/server/storage/sqlite"
)

type Server struct {
	httpServer *http.Server
	store      storage.Store
	log        *logrus.Logger
	stop       context.CancelFunc
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = "duckdb"
	}

	log, err := logging.New(cfg.LogLevel, nil)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg.DBDriver, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	ctx, stop := context.WithCancel(context.Background())
	opts := dissect.Options{Prefilter: true, Logger: log}
	if cfg.Resolve {
		// server 常驻，解析缓存跨请求共享，需要定期清理。
		r := resolver.NewDNSResolver(cfg.ResolverTTL, 0)
		r.StartCleanup(ctx, time.Minute)
		opts.Resolver = r
	}

	router := gin.New()
	router.Use(gin.Recovery())

	h := api.NewHandlers(store, dissect.NewAnalyzer(opts), cfg.CaptureRoot, log)
	v1 := router.Group("/api/v1")
	{
		v1.POST("/upload", h.Upload)
		v1.POST("/analyze", h.Analyze)
		v1.GET("/reports/:id", h.GetReport)
		v1.GET("/query", h.Query)
	}

	return &Server{
		store: store,
		log:   log,
		stop:  stop,
		httpServer: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func openStore(driver, path string) (storage.Store, error) {
	switch driver {
	case "duckdb":
		if path == "" {
			path = "./netsift.duckdb"
		}
		return duckdb.NewStore(path)
	case "sqlite":
		return sqlite.NewStore(path)
	default:
		return nil, fmt.Errorf("不支持的数据库类型：%s（可选 duckdb / sqlite）", driver)
	}
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) ListenAndServe() error {
	s.log.WithField("listen", s.httpServer.Addr).Info("server 启动")
	return s.httpServer.ListenAndServe()
}

// Shutdown 停止 HTTP 服务并关闭存储，两者的错误都会返回。
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	return errors.Join(s.httpServer.Shutdown(ctx), s.store.Close())
}
