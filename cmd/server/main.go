package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/namsral/flag"
	"github.com/sirupsen/logrus"

	"netsift/internal/server/app"
)

func main() {
	flag.CommandLine = flag.NewFlagSetWithEnvPrefix(os.Args[0], "NETSIFT", flag.ExitOnError)

	var cfg app.Config
	flag.String(flag.DefaultConfigFlagname, "", "配置文件路径")
	flag.StringVar(&cfg.ListenAddr, "listen", ":8080", "监听地址")
	flag.StringVar(&cfg.DBDriver, "db-driver", "duckdb", "数据库类型：duckdb 或 sqlite")
	flag.StringVar(&cfg.DBPath, "db", "", "数据库文件路径")
	flag.StringVar(&cfg.CaptureRoot, "capture-root", "./captures", "analyze 接口允许读取的抓包目录，为空则关闭该接口")
	flag.BoolVar(&cfg.Resolve, "resolve", true, "服务端分析时是否解析域名")
	flag.DurationVar(&cfg.ResolverTTL, "resolver-ttl", 10*time.Minute, "域名解析缓存时间")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "日志级别")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := app.NewServer(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("server 初始化失败")
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("server 关闭失败")
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Fatal("server 运行失败")
	}
}
