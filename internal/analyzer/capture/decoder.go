package capture

import (
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	ErrUnsupportedLink = errors.New("不支持的链路层类型")
	ErrMalformed       = errors.New("数据包结构非法")
	ErrTruncated       = errors.New("数据包不完整")
)

type Protocol int

const (
	ProtocolOther Protocol = iota
	ProtocolTCP
	ProtocolUDP
)

func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "tcp"
	case ProtocolUDP:
		return "udp"
	default:
		return "other"
	}
}

// Packet 是一帧解码后的只读视图。Payload 引用帧本身的字节，不做拷贝。
type Packet struct {
	Protocol Protocol
	SrcIP    string
	DstIP    string
	SrcPort  int
	DstPort  int
	Payload  []byte
}

// Decoder 把原始帧解码为 Packet。内部复用各层结构体，不能并发使用。
type Decoder struct {
	linkType layers.LinkType
	parsers  map[gopacket.LayerType]*gopacket.DecodingLayerParser
	decoded  []gopacket.LayerType
	// pcapng 其它接口的链路层按需创建；不支持的链路层记为 nil。
	others map[layers.LinkType]*Decoder

	eth   layers.Ethernet
	dot1q layers.Dot1Q
	sll   layers.LinuxSLL
	loop  layers.Loopback
	ip4   layers.IPv4
	ip6   layers.IPv6
	tcp   layers.TCP
	udp   layers.UDP
}

// NewDecoder 为给定链路层类型创建解码器；不认识的链路层返回 ErrUnsupportedLink。
func NewDecoder(linkType layers.LinkType) (*Decoder, error) {
	d := &Decoder{
		linkType: linkType,
		parsers:  make(map[gopacket.LayerType]*gopacket.DecodingLayerParser, 2),
		decoded:  make([]gopacket.LayerType, 0, 8),
	}
	switch linkType {
	case layers.LinkTypeEthernet:
		d.addParser(layers.LayerTypeEthernet)
	case layers.LinkTypeLinuxSLL:
		d.addParser(layers.LayerTypeLinuxSLL)
	case layers.LinkTypeNull, layers.LinkTypeLoop:
		d.addParser(layers.LayerTypeLoopback)
	case layers.LinkTypeRaw, layers.LinkTypeIPv4, layers.LinkTypeIPv6:
		d.addParser(layers.LayerTypeIPv4)
		d.addParser(layers.LayerTypeIPv6)
	default:
		return nil, fmt.Errorf("%w：%s", ErrUnsupportedLink, linkType)
	}
	return d, nil
}

func (d *Decoder) addParser(first gopacket.LayerType) {
	p := gopacket.NewDecodingLayerParser(first,
		&d.eth, &d.dot1q, &d.sll, &d.loop, &d.ip4, &d.ip6, &d.tcp, &d.udp)
	// 应用层（DNS/HTTP 等）交给后续模块自行解析，这里遇到不认识的层直接停止。
	p.IgnoreUnsupported = true
	d.parsers[first] = p
}

func (d *Decoder) parserFor(data []byte) *gopacket.DecodingLayerParser {
	switch d.linkType {
	case layers.LinkTypeEthernet:
		return d.parsers[layers.LayerTypeEthernet]
	case layers.LinkTypeLinuxSLL:
		return d.parsers[layers.LayerTypeLinuxSLL]
	case layers.LinkTypeNull, layers.LinkTypeLoop:
		return d.parsers[layers.LayerTypeLoopback]
	}
	if len(data) > 0 && data[0]>>4 == 6 {
		return d.parsers[layers.LayerTypeIPv6]
	}
	return d.parsers[layers.LayerTypeIPv4]
}

// Decode 解码一帧。失败时返回的错误匹配 ErrMalformed 或 ErrTruncated；
// 非 TCP/UDP 的包返回 Protocol 为 ProtocolOther 的结果而不是错误。
func (d *Decoder) Decode(f Frame) (pkt Packet, err error) {
	defer func() {
		if r := recover(); r != nil {
			pkt, err = Packet{}, fmt.Errorf("%w：%v", ErrMalformed, r)
		}
	}()

	if lt, ok := f.ForeignLink(); ok && lt != d.linkType {
		sub, err := d.forLink(lt)
		if err != nil {
			return Packet{}, err
		}
		return sub.Decode(f)
	}

	d.decoded = d.decoded[:0]
	if derr := d.parserFor(f.Data).DecodeLayers(f.Data, &d.decoded); derr != nil {
		return Packet{}, d.classify(f, derr)
	}

	var (
		network   gopacket.LayerType
		transport gopacket.LayerType
	)
	for _, lt := range d.decoded {
		switch lt {
		case layers.LayerTypeIPv4, layers.LayerTypeIPv6:
			network = lt
		case layers.LayerTypeTCP, layers.LayerTypeUDP:
			transport = lt
		}
	}

	switch network {
	case layers.LayerTypeIPv4:
		pkt.SrcIP, pkt.DstIP = d.ip4.SrcIP.String(), d.ip4.DstIP.String()
	case layers.LayerTypeIPv6:
		pkt.SrcIP, pkt.DstIP = d.ip6.SrcIP.String(), d.ip6.DstIP.String()
	default:
		return Packet{}, d.classify(f, errors.New("缺少网络层"))
	}

	switch transport {
	case layers.LayerTypeTCP:
		pkt.Protocol = ProtocolTCP
		pkt.SrcPort, pkt.DstPort = int(d.tcp.SrcPort), int(d.tcp.DstPort)
		pkt.Payload = d.tcp.Payload
	case layers.LayerTypeUDP:
		pkt.Protocol = ProtocolUDP
		pkt.SrcPort, pkt.DstPort = int(d.udp.SrcPort), int(d.udp.DstPort)
		pkt.Payload = d.udp.Payload
	default:
		pkt.Protocol = ProtocolOther
	}
	return pkt, nil
}

func (d *Decoder) forLink(lt layers.LinkType) (*Decoder, error) {
	if d.others == nil {
		d.others = make(map[layers.LinkType]*Decoder, 1)
	}
	sub, seen := d.others[lt]
	if !seen {
		sub, _ = NewDecoder(lt)
		d.others[lt] = sub
	}
	if sub == nil {
		return nil, fmt.Errorf("%w：%s", ErrUnsupportedLink, lt)
	}
	return sub, nil
}

func (d *Decoder) classify(f Frame, cause error) error {
	if f.CaptureLength < f.Length {
		return fmt.Errorf("%w：%v", ErrTruncated, cause)
	}
	return fmt.Errorf("%w：%v", ErrMalformed, cause)
}
