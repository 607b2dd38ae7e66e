package dnsrecon

import (
	"strings"

	"github.com/miekg/dns"

	"netsift/pkg/model"
)

// DefaultIgnoredHosts 是沙箱虚拟机自身时间同步产生的查询，不属于样本行为。
var DefaultIgnoredHosts = []string{"time.windows.com"}

const reverseZone = "in-addr.arpa"

// Resolver 把域名解析为 IPv4 地址字符串。
type Resolver interface {
	LookupIPv4(host string) (string, error)
}

// QueryName 解析 DNS 报文并返回第一个问题的查询名（去掉末尾的根点）。
func QueryName(payload []byte) (string, bool) {
	var msg dns.Msg
	if err := msg.Unpack(payload); err != nil {
		return "", false
	}
	if len(msg.Question) == 0 {
		return "", false
	}
	name := strings.TrimSuffix(msg.Question[0].Name, ".")
	if name == "" {
		return "", false
	}
	return name, true
}

// Extractor 负责一次分析内的 DNS 查询提取与去重，不能跨分析复用。
type Extractor struct {
	resolver Resolver
	ignored  map[string]struct{}
	seen     map[string]struct{}
}

// NewExtractor 创建一个新的提取器。resolver 为 nil 时不做解析，地址一律为空串。
func NewExtractor(resolver Resolver, ignoredHosts []string) *Extractor {
	ignored := make(map[string]struct{}, len(ignoredHosts))
	for _, h := range ignoredHosts {
		if h = strings.TrimSpace(h); h != "" {
			ignored[h] = struct{}{}
		}
	}
	return &Extractor{
		resolver: resolver,
		ignored:  ignored,
		seen:     make(map[string]struct{}, 64),
	}
}

// Observe 处理一个发往 53 端口的 UDP payload，只有首次出现且不属于噪声的域名才返回记录。
func (e *Extractor) Observe(payload []byte) (model.DNSRequest, bool) {
	name, ok := QueryName(payload)
	if !ok {
		return model.DNSRequest{}, false
	}
	if _, dup := e.seen[name]; dup {
		return model.DNSRequest{}, false
	}
	// 反向解析（PTR）查询：只要名字里出现该后缀就丢弃，不要求出现在末尾。
	if strings.Contains(name, reverseZone) {
		return model.DNSRequest{}, false
	}
	if _, skip := e.ignored[strings.TrimSpace(name)]; skip {
		return model.DNSRequest{}, false
	}

	rec := model.DNSRequest{Hostname: name}
	if e.resolver != nil {
		if ip, err := e.resolver.LookupIPv4(name); err == nil {
			rec.IP = ip
		}
	}
	e.seen[name] = struct{}{}
	return rec, true
}

// Seen 报告该域名在本次分析中是否已经被记录过。
func (e *Extractor) Seen(name string) bool {
	_, ok := e.seen[name]
	return ok
}
