package dissect

import (
	"errors"
	"io"

	"netsift/internal/analyzer/capture"
	"netsift/internal/analyzer/dnsrecon"
	"netsift/internal/analyzer/filter"
	"netsift/internal/analyzer/httprecon"
	"netsift/pkg/model"
)

const dnsPort = 53

type Stats struct {
	Frames   int
	Decoded  int
	Skipped  int
	Filtered int
}

type frameSource interface {
	Next() (capture.Frame, error)
}

// Dissector 是单次分析的状态：解码器、DNS 去重集合与结果聚合器都只属于这一次遍历。
type Dissector struct {
	decoder   *capture.Decoder
	prefilter *filter.Prefilter
	dns       *dnsrecon.Extractor
	agg       *Aggregator
	stats     Stats
}

func NewDissector(decoder *capture.Decoder, dns *dnsrecon.Extractor, prefilter *filter.Prefilter) *Dissector {
	return &Dissector{
		decoder:   decoder,
		prefilter: prefilter,
		dns:       dns,
		agg:       NewAggregator(),
	}
}

// Run 单次顺序遍历全部帧。解码失败的帧直接跳过；
// 读取出错时无法再定位下一帧，遍历在此结束，已得到的记录保留，错误返回给调用方记录日志。
func (d *Dissector) Run(src frameSource) error {
	for {
		f, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		d.stats.Frames++

		// 预过滤程序按 Ethernet 布局编写，其它接口的帧直接交给解码器。
		if _, foreign := f.ForeignLink(); d.prefilter != nil && !foreign && !d.prefilter.Accept(f.Data) {
			d.stats.Filtered++
			continue
		}

		pkt, err := d.decoder.Decode(f)
		if err != nil {
			// 结构非法与数据不足同样处理：跳过该帧继续。
			d.stats.Skipped++
			continue
		}
		d.stats.Decoded++
		d.Handle(pkt)
	}
}

// Handle 按传输层协议分派一个已解码的包。
func (d *Dissector) Handle(pkt capture.Packet) {
	if len(pkt.Payload) == 0 {
		return
	}
	switch pkt.Protocol {
	case capture.ProtocolTCP:
		if req, ok := httprecon.Parse(pkt.Payload, pkt.DstPort); ok {
			d.agg.AddHTTP(req)
		}
		d.agg.AddTCP(pkt)
	case capture.ProtocolUDP:
		if pkt.DstPort == dnsPort {
			if rec, ok := d.dns.Observe(pkt.Payload); ok {
				d.agg.AddDNS(rec)
			}
		}
		d.agg.AddUDP(pkt)
	}
}

func (d *Dissector) Stats() Stats {
	return d.stats
}

func (d *Dissector) Result() *model.Result {
	return d.agg.Result()
}
