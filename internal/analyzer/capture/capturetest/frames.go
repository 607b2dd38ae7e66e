// Package capturetest 提供测试用的以太网帧构造与 pcap 文件写入工具。
package capturetest

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var (
	srcMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	dstMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

func serialize(t testing.TB, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return buf.Bytes()
}

func ipv4(src, dst string, proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: proto,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
}

func ethernet(t layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: t}
}

// TCP 构造一个 Ethernet/IPv4/TCP 帧。
func TCP(t testing.TB, src, dst string, sport, dport int, payload []byte) []byte {
	ip := ipv4(src, dst, layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(sport),
		DstPort: layers.TCPPort(dport),
		Seq:     1,
		ACK:     true,
		PSH:     len(payload) > 0,
		Window:  65535,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("checksum layer: %v", err)
	}
	return serialize(t, ethernet(layers.EthernetTypeIPv4), ip, tcp, gopacket.Payload(payload))
}

// UDP 构造一个 Ethernet/IPv4/UDP 帧。
func UDP(t testing.TB, src, dst string, sport, dport int, payload []byte) []byte {
	ip := ipv4(src, dst, layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: layers.UDPPort(dport)}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("checksum layer: %v", err)
	}
	return serialize(t, ethernet(layers.EthernetTypeIPv4), ip, udp, gopacket.Payload(payload))
}

// UDP6 构造一个 Ethernet/IPv6/UDP 帧。
func UDP6(t testing.TB, src, dst string, sport, dport int, payload []byte) []byte {
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP(src),
		DstIP:      net.ParseIP(dst),
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: layers.UDPPort(dport)}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("checksum layer: %v", err)
	}
	return serialize(t, ethernet(layers.EthernetTypeIPv6), ip, udp, gopacket.Payload(payload))
}

// ICMP 构造一个 Ethernet/IPv4/ICMPv4 echo 帧。
func ICMP(t testing.TB, src, dst string) []byte {
	ip := ipv4(src, dst, layers.IPProtocolICMPv4)
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), Id: 1, Seq: 1}
	return serialize(t, ethernet(layers.EthernetTypeIPv4), ip, icmp, gopacket.Payload([]byte("ping")))
}

// ARP 构造一个 ARP 请求帧。
func ARP(t testing.TB) []byte {
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   srcMAC,
		SourceProtAddress: net.ParseIP("10.0.0.1").To4(),
		DstHwAddress:      net.HardwareAddr{0, 0, 0, 0, 0, 0},
		DstProtAddress:    net.ParseIP("10.0.0.2").To4(),
	}
	return serialize(t, ethernet(layers.EthernetTypeARP), arp)
}

// WritePcap 把帧写入临时目录下的 pcap 文件并返回路径。
func WritePcap(t testing.TB, linkType layers.LinkType, frames ...[]byte) string {
	t.Helper()
	return WritePcapSnaplen(t, 65536, linkType, frames...)
}

// WritePcapSnaplen 与 WritePcap 相同，但文件头使用给定的 snaplen，帧本身不截断。
func WritePcapSnaplen(t testing.TB, snaplen uint32, linkType layers.LinkType, frames ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.pcap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create pcap: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(snaplen, linkType); err != nil {
		t.Fatalf("write header: %v", err)
	}
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, fr := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(fr),
			Length:        len(fr),
		}
		if err := w.WritePacket(ci, fr); err != nil {
			t.Fatalf("write packet: %v", err)
		}
	}
	return path
}

// WritePcapNg 与 WritePcap 相同，但输出 pcapng 格式。
func WritePcapNg(t testing.TB, frames ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.pcapng")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create pcapng: %v", err)
	}
	defer f.Close()

	w, err := pcapgo.NewNgWriter(f, layers.LinkTypeEthernet)
	if err != nil {
		t.Fatalf("ng writer: %v", err)
	}
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, fr := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:      ts.Add(time.Duration(i) * time.Millisecond),
			CaptureLength:  len(fr),
			Length:         len(fr),
			InterfaceIndex: 0,
		}
		if err := w.WritePacket(ci, fr); err != nil {
			t.Fatalf("write packet: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return path
}

// NgFrame 是写入多接口 pcapng 时的一帧，Interface 为接口序号。
type NgFrame struct {
	Interface int
	Data      []byte
}

// WritePcapNgInterfaces 写入一个包含多个接口的 pcapng，第 i 个接口使用 linkTypes[i]。
func WritePcapNgInterfaces(t testing.TB, linkTypes []layers.LinkType, frames ...NgFrame) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.pcapng")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create pcapng: %v", err)
	}
	defer f.Close()

	intf := pcapgo.DefaultNgInterface
	intf.LinkType = linkTypes[0]
	w, err := pcapgo.NewNgWriterInterface(f, intf, pcapgo.DefaultNgWriterOptions)
	if err != nil {
		t.Fatalf("ng writer: %v", err)
	}
	for _, lt := range linkTypes[1:] {
		intf := pcapgo.DefaultNgInterface
		intf.LinkType = lt
		if _, err := w.AddInterface(intf); err != nil {
			t.Fatalf("add interface: %v", err)
		}
	}
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, fr := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:      ts.Add(time.Duration(i) * time.Millisecond),
			CaptureLength:  len(fr.Data),
			Length:         len(fr.Data),
			InterfaceIndex: fr.Interface,
		}
		if err := w.WritePacket(ci, fr.Data); err != nil {
			t.Fatalf("write packet: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return path
}

// WriteFile 写入任意字节内容，用于构造空文件或损坏的抓包文件。
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}
