package capture

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var (
	ErrMissing    = errors.New("抓包文件不存在")
	ErrEmpty      = errors.New("抓包文件为空")
	ErrUnreadable = errors.New("抓包文件无法读取")
)

var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// 文件头 snaplen 低于该值时按该值处理。
const minSnaplen = 262144

// Frame 是从抓包文件读出的一帧原始数据，只在当前迭代内有效。
type Frame struct {
	Data          []byte
	Timestamp     time.Time
	CaptureLength int
	Length        int

	// pcapng 中该帧所属接口的链路层与文件首个接口不同时才设置。
	linkType layers.LinkType
	foreign  bool
}

// ForeignLink 返回该帧所属接口的链路层类型；与文件链路层一致时 ok=false。
func (f Frame) ForeignLink() (layers.LinkType, bool) {
	return f.linkType, f.foreign
}

type Source struct {
	f      *os.File
	format string
	link   layers.LinkType
	read   func() ([]byte, gopacket.CaptureInfo, error)
	ng     *pcapgo.NgReader

	pending    *Frame
	pendingErr error
}

// OpenFile 校验并打开离线抓包文件（pcap 或 pcapng）。
// 返回的错误都可以用 errors.Is 匹配 ErrMissing / ErrEmpty / ErrUnreadable。
func OpenFile(path string) (*Source, error) {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w：%s", ErrMissing, path)
		}
		return nil, fmt.Errorf("%w：%v", ErrUnreadable, err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%w：%s 是目录", ErrUnreadable, path)
	}
	if st.Size() == 0 {
		return nil, fmt.Errorf("%w：%s", ErrEmpty, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w：%v", ErrUnreadable, err)
	}
	s, err := newSource(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s.f = f
	return s, nil
}

func newSource(rd io.Reader) (*Source, error) {
	br := bufio.NewReaderSize(rd, 64<<10)
	magic, _ := br.Peek(len(pcapngMagic))

	// 根据文件头魔数区分 pcapng 与经典 pcap，两者都由 gopacket/pcapgo 解析。
	if bytes.Equal(magic, pcapngMagic) {
		r, err := pcapgo.NewNgReader(br, pcapgo.NgReaderOptions{WantMixedLinkType: true})
		if err != nil {
			return nil, fmt.Errorf("%w：解析 pcapng 头失败：%v", ErrUnreadable, err)
		}
		s := &Source{format: "pcapng", read: r.ReadPacketData, ng: r}
		s.prefetch()
		return s, nil
	}
	r, err := pcapgo.NewReader(relaxSnaplen(br))
	if err != nil {
		return nil, fmt.Errorf("%w：解析 pcap 头失败：%v", ErrUnreadable, err)
	}
	return &Source{format: "pcap", link: r.LinkType(), read: r.ReadPacketData}, nil
}

// relaxSnaplen 放宽 pcap 文件头中的 snaplen。不少写入工具记录的 snaplen 比实际写入的帧小，
// pcapgo 遇到这样的记录会直接报错，而帧本身是完整可读的。
func relaxSnaplen(br *bufio.Reader) io.Reader {
	hdr, err := br.Peek(24)
	if err != nil {
		return br
	}
	var order binary.ByteOrder
	switch binary.LittleEndian.Uint32(hdr[:4]) {
	case 0xa1b2c3d4, 0xa1b23c4d:
		order = binary.LittleEndian
	case 0xd4c3b2a1, 0x4d3cb2a1:
		order = binary.BigEndian
	default:
		return br
	}
	if order.Uint32(hdr[16:20]) >= minSnaplen {
		return br
	}
	patched := bytes.Clone(hdr)
	order.PutUint32(patched[16:20], minSnaplen)
	if _, err := br.Discard(len(patched)); err != nil {
		return br
	}
	return io.MultiReader(bytes.NewReader(patched), br)
}

// prefetch 预读 pcapng 的第一帧：接口描述块在首个数据包之前，读到它之后才知道文件的链路层。
func (s *Source) prefetch() {
	data, ci, err := s.ng.ReadPacketData()
	s.link = layers.LinkTypeEthernet
	if s.ng.NInterfaces() > 0 {
		if intf, ierr := s.ng.Interface(0); ierr == nil {
			s.link = intf.LinkType
		}
	}
	if err != nil {
		s.pendingErr = err
		return
	}
	f := s.frame(data, ci)
	s.pending = &f
}

func (s *Source) frame(data []byte, ci gopacket.CaptureInfo) Frame {
	f := Frame{
		Data:          data,
		Timestamp:     ci.Timestamp,
		CaptureLength: ci.CaptureLength,
		Length:        ci.Length,
	}
	if s.ng != nil {
		if intf, err := s.ng.Interface(ci.InterfaceIndex); err == nil && intf.LinkType != s.link {
			f.linkType, f.foreign = intf.LinkType, true
		}
	}
	return f
}

func (s *Source) Format() string {
	return s.format
}

// LinkType 返回文件的链路层类型；pcapng 取第一个接口的链路层。
func (s *Source) LinkType() layers.LinkType {
	return s.link
}

// Next 返回下一帧；读到文件末尾时返回 io.EOF。
func (s *Source) Next() (Frame, error) {
	if s.pending != nil {
		f := *s.pending
		s.pending = nil
		return f, nil
	}
	if s.pendingErr != nil {
		err := s.pendingErr
		s.pendingErr = nil
		return Frame{}, err
	}
	data, ci, err := s.read()
	if err != nil {
		return Frame{}, err
	}
	return s.frame(data, ci), nil
}

func (s *Source) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
