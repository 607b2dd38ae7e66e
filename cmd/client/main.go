package main

import (
	"os"
	"time"

	"github.com/namsral/flag"
	"github.com/sirupsen/logrus"

	"netsift/internal/client/app"
)

func main() {
	flag.CommandLine = flag.NewFlagSetWithEnvPrefix(os.Args[0], "NETSIFT", flag.ExitOnError)

	var cfg app.Config
	flag.String(flag.DefaultConfigFlagname, "", "配置文件路径")
	flag.StringVar(&cfg.Server, "server", "http://127.0.0.1:8080", "Server 地址")
	flag.StringVar(&cfg.ID, "id", "", "报告 id")
	flag.StringVar(&cfg.IP, "ip", "", "按 IP 列出相关报告")
	flag.IntVar(&cfg.Limit, "limit", 0, "最多返回的报告数")
	flag.DurationVar(&cfg.Timeout, "timeout", 10*time.Second, "请求超时")
	flag.Parse()

	if cfg.ID == "" && cfg.IP == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := app.Run(cfg); err != nil {
		logrus.WithError(err).Error("client 失败")
		os.Exit(1)
	}
}
