package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/namsral/flag"
	"github.com/sirupsen/logrus"

	"netsift/internal/analyzer/app"
	"netsift/internal/analyzer/dissect"
	"netsift/internal/analyzer/dnsrecon"
)

func main() {
	flag.CommandLine = flag.NewFlagSetWithEnvPrefix(os.Args[0], "NETSIFT", flag.ExitOnError)

	var cfg app.Config
	var ignore string
	flag.String(flag.DefaultConfigFlagname, "", "配置文件路径")
	flag.StringVar(&cfg.PcapPath, "pcap", "", "要分析的抓包文件（pcap / pcapng），必填")
	flag.StringVar(&cfg.Format, "format", "table", "输出格式：table 或 json")
	flag.BoolVar(&cfg.Resolve, "resolve", true, "是否解析 DNS 查询到的域名")
	flag.DurationVar(&cfg.ResolveTimeout, "resolve-timeout", 2*time.Second, "单次域名解析超时")
	flag.BoolVar(&cfg.Prefilter, "prefilter", false, "对以太网帧启用 BPF 预过滤")
	flag.StringVar(&ignore, "ignore-hosts", strings.Join(dnsrecon.DefaultIgnoredHosts, ","), "忽略的域名，逗号分隔")
	flag.StringVar(&cfg.ServerIP, "server-ip", "", "Server IP，与 server-port 同时指定时上传报告")
	flag.IntVar(&cfg.ServerPort, "server-port", 0, "Server Port")
	flag.DurationVar(&cfg.UploadTimeout, "upload-timeout", 10*time.Second, "上传超时")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "日志级别")
	flag.Parse()

	if cfg.PcapPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	cfg.IgnoredHosts = splitList(ignore)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg); err != nil {
		if errors.Is(err, dissect.ErrUnavailable) {
			logrus.WithError(err).Warn("没有分析结果")
		} else {
			logrus.WithError(err).Error("netsift 失败")
		}
		os.Exit(1)
	}
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
