package httprecon

import (
	"bytes"
	"fmt"
	"net/http"
	"net/textproto"
	"strings"

	"netsift/pkg/model"
)

// 可识别的请求方法，包含 WebDAV/版本控制扩展，与常见抓包分析工具保持一致。
var methods = map[string]struct{}{
	"GET": {}, "PUT": {}, "ICY": {}, "COPY": {}, "HEAD": {}, "LOCK": {}, "MOVE": {},
	"POLL": {}, "POST": {}, "BCOPY": {}, "BMOVE": {}, "MKCOL": {}, "TRACE": {},
	"LABEL": {}, "MERGE": {}, "PATCH": {}, "DELETE": {}, "SEARCH": {}, "UNLOCK": {},
	"REPORT": {}, "UPDATE": {}, "NOTIFY": {}, "BDELETE": {}, "CONNECT": {},
	"OPTIONS": {}, "CHECKIN": {}, "PROPFIND": {}, "CHECKOUT": {}, "CCM_POST": {},
	"SUBSCRIBE": {}, "PROPPATCH": {}, "BPROPFIND": {}, "BPROPPATCH": {},
	"UNCHECKOUT": {}, "MKACTIVITY": {}, "MKWORKSPACE": {}, "UNSUBSCRIBE": {},
	"RPC_CONNECT": {}, "VERSION-CONTROL": {}, "BASELINE-CONTROL": {},
}

// 最长方法名加一个空格，用于在完整解析前快速排除非 HTTP payload。
const maxMethodLen = len("BASELINE-CONTROL") + 1

// Parse 尝试把单个 TCP payload 解释为 HTTP 请求。
// 不做 TCP 流重组：请求行与完整头部必须落在同一个 payload 内，否则返回 ok=false。
func Parse(payload []byte, dstPort int) (req model.HTTPRequest, ok bool) {
	if !looksLikeRequest(payload) {
		return model.HTTPRequest{}, false
	}

	line, rest, ok := cutLine(payload)
	if !ok {
		return model.HTTPRequest{}, false
	}
	method, target, version, ok := parseRequestLine(string(line))
	if !ok {
		return model.HTTPRequest{}, false
	}

	hdr, body, ok := parseHeader(rest)
	if !ok {
		return model.HTTPRequest{}, false
	}
	hosts, found := hdr["Host"]
	if !found || len(hosts) == 0 || strings.TrimSpace(hosts[0]) == "" {
		return model.HTTPRequest{}, false
	}
	host := strings.TrimSpace(hosts[0])

	return model.HTTPRequest{
		Host:      host,
		Port:      dstPort,
		Data:      bytes.Clone(payload),
		URI:       BuildURI(host, dstPort, target),
		Body:      bytes.Clone(body),
		Path:      target,
		UserAgent: hdr.Get("User-Agent"),
		Version:   version,
		Method:    method,
	}, true
}

// parseHeader 读取头部直到空行，返回其后的全部字节作为 body。
// 头部值按原样保留，包括控制字符；没有冒号的行或没有空行结尾的头部视为非法。
func parseHeader(b []byte) (http.Header, []byte, bool) {
	hdr := make(http.Header)
	var last string
	for {
		line, rest, ok := cutLine(b)
		if !ok {
			return nil, nil, false
		}
		b = rest
		if len(line) == 0 {
			return hdr, b, true
		}
		// 以空白开头的续行拼接到上一个头部值。
		if (line[0] == ' ' || line[0] == '\t') && last != "" {
			vals := hdr[last]
			vals[len(vals)-1] += " " + strings.TrimSpace(string(line))
			continue
		}
		i := bytes.IndexByte(line, ':')
		if i <= 0 {
			return nil, nil, false
		}
		key := textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(string(line[:i])))
		if key == "" {
			return nil, nil, false
		}
		hdr[key] = append(hdr[key], strings.TrimSpace(string(line[i+1:])))
		last = key
	}
}

// cutLine 切出第一行（去掉 \r\n 或 \n）；找不到换行时 ok=false。
func cutLine(b []byte) (line, rest []byte, ok bool) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		return nil, nil, false
	}
	line = b[:i]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, b[i+1:], true
}

// BuildURI 拼出 http://host[:port]/path，端口为 80 时省略。不做 query/fragment 规范化。
func BuildURI(host string, port int, target string) string {
	authority := host
	if port != 80 {
		authority = fmt.Sprintf("%s:%d", host, port)
	}
	if target != "" && !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return "http://" + authority + target
}

func looksLikeRequest(payload []byte) bool {
	head := payload
	if len(head) > maxMethodLen {
		head = head[:maxMethodLen]
	}
	sp := bytes.IndexByte(head, ' ')
	if sp <= 0 {
		return false
	}
	_, known := methods[string(head[:sp])]
	return known
}

func parseRequestLine(line string) (method, target, version string, ok bool) {
	parts := strings.Fields(line)
	if len(parts) != 3 {
		return "", "", "", false
	}
	if _, known := methods[parts[0]]; !known {
		return "", "", "", false
	}
	if _, _, valid := http.ParseHTTPVersion(parts[2]); !valid {
		return "", "", "", false
	}
	return parts[0], parts[1], strings.TrimPrefix(parts[2], "HTTP/"), true
}
