package model

import "time"

// Connection 是单个数据包的传输层四元组，不做会话去重。
type Connection struct {
	Src     string `json:"src"`
	Dst     string `json:"dst"`
	SrcPort int    `json:"sport"`
	DstPort int    `json:"dport"`
}

type HTTPRequest struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Data      []byte `json:"data"`
	URI       string `json:"uri"`
	Body      []byte `json:"body"`
	Path      string `json:"path"`
	UserAgent string `json:"user-agent"`
	Version   string `json:"version"`
	Method    string `json:"method"`
}

// DNSRequest 记录一次被观测到的域名查询；IP 解析失败时为空串。
type DNSRequest struct {
	Hostname string `json:"hostname"`
	IP       string `json:"ip"`
}

type Result struct {
	TCP  []Connection  `json:"tcp"`
	UDP  []Connection  `json:"udp"`
	HTTP []HTTPRequest `json:"http"`
	DNS  []DNSRequest  `json:"dns"`
}

// NewResult 返回四个序列均为空（非 nil）的结果，序列化后是 [] 而不是 null。
func NewResult() *Result {
	return &Result{
		TCP:  []Connection{},
		UDP:  []Connection{},
		HTTP: []HTTPRequest{},
		DNS:  []DNSRequest{},
	}
}

type Report struct {
	ID          string    `json:"id"`
	CapturePath string    `json:"capture_path"`
	CreatedAt   time.Time `json:"created_at"`
	Result      *Result   `json:"result"`
}

type ReportSummary struct {
	ID          string    `json:"id"`
	CapturePath string    `json:"capture_path"`
	CreatedAt   time.Time `json:"created_at"`
	TCPCount    int       `json:"tcp_count"`
	UDPCount    int       `json:"udp_count"`
	HTTPCount   int       `json:"http_count"`
	DNSCount    int       `json:"dns_count"`
}

func (r *Report) Summary() ReportSummary {
	s := ReportSummary{ID: r.ID, CapturePath: r.CapturePath, CreatedAt: r.CreatedAt}
	if r.Result != nil {
		s.TCPCount = len(r.Result.TCP)
		s.UDPCount = len(r.Result.UDP)
		s.HTTPCount = len(r.Result.HTTP)
		s.DNSCount = len(r.Result.DNS)
	}
	return s
}
