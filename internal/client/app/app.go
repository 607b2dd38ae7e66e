package app

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"netsift/internal/render"
	"netsift/pkg/model"
)

// Run 按报告 id 拉取完整报告，或按 IP 列出相关报告摘要，输出为表格。
func Run(cfg Config) error {
	return run(cfg, os.Stdout)
}

func run(cfg Config, out io.Writer) error {
	if cfg.ID == "" && cfg.IP == "" {
		return fmt.Errorf("id 与 ip 至少指定一个")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	u, err := url.Parse(cfg.Server)
	if err != nil {
		return fmt.Errorf("server 参数非法：%w", err)
	}
	if cfg.ID != "" {
		u.Path = "/api/v1/reports/" + url.PathEscape(cfg.ID)
	} else {
		u.Path = "/api/v1/query"
		q := u.Query()
		q.Set("ip", cfg.IP)
		if cfg.Limit > 0 {
			q.Set("limit", strconv.Itoa(cfg.Limit))
		}
		u.RawQuery = q.Encode()
	}

	client := &http.Client{Timeout: cfg.Timeout}
	resp, err := client.Get(u.String())
	if err != nil {
		return fmt.Errorf("请求失败：%w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("查询失败：status=%s body=%s", resp.Status, string(b))
	}

	if cfg.ID != "" {
		var rep model.Report
		if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
			return fmt.Errorf("解析响应 JSON 失败：%w", err)
		}
		fmt.Fprintf(out, "report %s (%s) %s\n", rep.ID, rep.CapturePath, rep.CreatedAt.Format(time.RFC3339))
		if rep.Result == nil {
			rep.Result = model.NewResult()
		}
		render.Result(out, rep.Result)
		return nil
	}

	var rows []model.ReportSummary
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return fmt.Errorf("解析响应 JSON 失败：%w", err)
	}
	render.Summaries(out, rows)
	return nil
}
