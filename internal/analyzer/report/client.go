package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"netsift/pkg/model"
)

const uploadPath = "/api/v1/upload"

// Client 把本地分析得到的报告推送到 server 落库。
type Client struct {
	endpoint string
	http     *http.Client
}

func NewClient(serverIP string, serverPort int, timeout time.Duration) *Client {
	return NewClientURL(fmt.Sprintf("http://%s:%d", serverIP, serverPort), timeout)
}

func NewClientURL(baseURL string, timeout time.Duration) *Client {
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + uploadPath,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) Upload(ctx context.Context, rep *model.Report) error {
	if rep == nil || rep.ID == "" {
		return fmt.Errorf("报告缺少 id")
	}
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("序列化报告失败：%w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("构造上传请求失败：%w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("上传报告失败：%w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("上传报告失败：status=%s body=%s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}
