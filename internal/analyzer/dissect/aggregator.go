package dissect

import (
	"netsift/internal/analyzer/capture"
	"netsift/pkg/model"
)

// Aggregator 按抓包顺序累积一次分析的全部记录，只追加、不排序、不去重。
type Aggregator struct {
	result *model.Result
}

func NewAggregator() *Aggregator {
	return &Aggregator{result: model.NewResult()}
}

func connection(p capture.Packet) model.Connection {
	return model.Connection{
		Src:     p.SrcIP,
		Dst:     p.DstIP,
		SrcPort: p.SrcPort,
		DstPort: p.DstPort,
	}
}

func (a *Aggregator) AddTCP(p capture.Packet) {
	a.result.TCP = append(a.result.TCP, connection(p))
}

func (a *Aggregator) AddUDP(p capture.Packet) {
	a.result.UDP = append(a.result.UDP, connection(p))
}

func (a *Aggregator) AddHTTP(r model.HTTPRequest) {
	a.result.HTTP = append(a.result.HTTP, r)
}

func (a *Aggregator) AddDNS(r model.DNSRequest) {
	a.result.DNS = append(a.result.DNS, r)
}

func (a *Aggregator) Result() *model.Result {
	return a.result
}
