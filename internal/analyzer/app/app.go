package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"netsift/internal/analyzer/dissect"
	"netsift/internal/analyzer/report"
	"netsift/internal/analyzer/resolver"
	"netsift/internal/logging"
	"netsift/internal/render"
	"netsift/pkg/model"
)

// Run 分析一个离线抓包文件，把结果输出到 stdout，并在配置了 server 时上传报告。
func Run(ctx context.Context, cfg Config) error {
	return run(ctx, cfg, os.Stdout)
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	if cfg.Format == "" {
		cfg.Format = "table"
	}
	if cfg.Format != "table" && cfg.Format != "json" {
		return fmt.Errorf("输出格式非法：%s（可选 table / json）", cfg.Format)
	}
	if cfg.UploadTimeout == 0 {
		cfg.UploadTimeout = 10 * time.Second
	}

	log, err := logging.New(cfg.LogLevel, nil)
	if err != nil {
		return err
	}

	opts := dissect.Options{
		IgnoredHosts: cfg.IgnoredHosts,
		Prefilter:    cfg.Prefilter,
		Logger:       log,
	}
	if cfg.Resolve {
		opts.Resolver = resolver.NewDNSResolver(0, cfg.ResolveTimeout)
	}

	res, err := dissect.NewAnalyzer(opts).Analyze(cfg.PcapPath)
	if err != nil {
		return err
	}

	rep := &model.Report{
		ID:          uuid.NewString(),
		CapturePath: cfg.PcapPath,
		CreatedAt:   time.Now().UTC(),
		Result:      res,
	}

	switch cfg.Format {
	case "json":
		if err := render.JSON(out, rep); err != nil {
			return fmt.Errorf("输出 JSON 失败：%w", err)
		}
	default:
		fmt.Fprintf(out, "report %s (%s)\n", rep.ID, rep.CapturePath)
		render.Result(out, res)
	}

	if cfg.ServerIP != "" && cfg.ServerPort != 0 {
		c := report.NewClient(cfg.ServerIP, cfg.ServerPort, cfg.UploadTimeout)
		if err := c.Upload(ctx, rep); err != nil {
			// 上传失败不影响本地结果，已经输出的报告仍然有效。
			log.WithError(err).WithField("report_id", rep.ID).Warn("上传报告失败")
		} else {
			log.WithField("report_id", rep.ID).Info("报告已上传")
		}
	}
	return nil
}
