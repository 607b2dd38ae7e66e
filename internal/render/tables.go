package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"netsift/pkg/model"
)

// Result 把一次分析的四类记录依次渲染为表格。
func Result(w io.Writer, r *model.Result) {
	if r == nil {
		r = model.NewResult()
	}
	connections(w, "TCP", r.TCP)
	connections(w, "UDP", r.UDP)

	t := newTable(w, fmt.Sprintf("HTTP requests: %d", len(r.HTTP)))
	t.SetHeader([]string{"Method", "URI", "Version", "User-Agent", "Body"})
	for _, h := range r.HTTP {
		t.Append([]string{h.Method, h.URI, h.Version, h.UserAgent, strconv.Itoa(len(h.Body)) + " B"})
	}
	t.Render()

	t = newTable(w, fmt.Sprintf("DNS requests: %d", len(r.DNS)))
	t.SetHeader([]string{"Hostname", "IP"})
	for _, d := range r.DNS {
		ip := d.IP
		if ip == "" {
			ip = "-"
		}
		t.Append([]string{d.Hostname, ip})
	}
	t.Render()
}

func connections(w io.Writer, proto string, rows []model.Connection) {
	t := newTable(w, fmt.Sprintf("%s connections: %d", proto, len(rows)))
	t.SetHeader([]string{"Source", "Destination"})
	for _, c := range rows {
		t.Append([]string{
			fmt.Sprintf("%s:%d", c.Src, c.SrcPort),
			fmt.Sprintf("%s:%d", c.Dst, c.DstPort),
		})
	}
	t.Render()
}

// Summaries 渲染报告列表。
func Summaries(w io.Writer, rows []model.ReportSummary) {
	t := newTable(w, "")
	t.SetHeader([]string{"ID", "Created", "Capture", "TCP", "UDP", "HTTP", "DNS"})
	for _, s := range rows {
		t.Append([]string{
			s.ID,
			s.CreatedAt.Format(time.RFC3339),
			s.CapturePath,
			strconv.Itoa(s.TCPCount),
			strconv.Itoa(s.UDPCount),
			strconv.Itoa(s.HTTPCount),
			strconv.Itoa(s.DNSCount),
		})
	}
	t.Render()
}

func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, caption string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetAutoWrapText(false)
	t.SetRowLine(false)
	if caption != "" {
		t.SetCaption(true, caption)
	}
	return t
}
