package dissect

import (
	"errors"
	"io"
	"testing"

	"github.com/google/gopacket/layers"

	"netsift/internal/analyzer/capture"
	"netsift/internal/analyzer/capture/capturetest"
	"netsift/internal/analyzer/dnsrecon"
)

type sliceSource struct {
	frames []capture.Frame
	err    error
}

func (s *sliceSource) Next() (capture.Frame, error) {
	if len(s.frames) == 0 {
		if s.err != nil {
			return capture.Frame{}, s.err
		}
		return capture.Frame{}, io.EOF
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func frameOf(b []byte) capture.Frame {
	return capture.Frame{Data: b, CaptureLength: len(b), Length: len(b)}
}

func newTestDissector(t *testing.T) *Dissector {
	t.Helper()
	dec, err := capture.NewDecoder(layers.LinkTypeEthernet)
	if err != nil {
		t.Fatal(err)
	}
	return NewDissector(dec, dnsrecon.NewExtractor(nil, nil), nil)
}

func TestDissector_TruncatedFileKeepsPartialResult(t *testing.T) {
	d := newTestDissector(t)
	src := &sliceSource{
		frames: []capture.Frame{frameOf(capturetest.TCP(t, "10.0.0.1", "10.0.0.2", 1000, 22, []byte("SSH-2.0-x\r\n")))},
		err:    io.ErrUnexpectedEOF,
	}
	if err := d.Run(src); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err=%v", err)
	}
	if len(d.Result().TCP) != 1 {
		t.Errorf("tcp=%+v", d.Result().TCP)
	}
}

func TestDissector_Stats(t *testing.T) {
	d := newTestDissector(t)
	src := &sliceSource{frames: []capture.Frame{
		frameOf([]byte{0x01}),
		frameOf(capturetest.UDP(t, "10.0.0.1", "10.0.0.2", 1000, 123, []byte{0x23})),
		frameOf(capturetest.ICMP(t, "10.0.0.1", "10.0.0.2")),
	}}
	if err := d.Run(src); err != nil {
		t.Fatal(err)
	}
	st := d.Stats()
	if st.Frames != 3 || st.Skipped != 1 || st.Decoded != 2 {
		t.Errorf("stats=%+v", st)
	}
	if len(d.Result().UDP) != 1 {
		t.Errorf("udp=%+v", d.Result().UDP)
	}
}

func TestDissector_ConnectionsKeepOrderAndDuplicates(t *testing.T) {
	d := newTestDissector(t)
	p := []byte("data")
	for i := 0; i < 3; i++ {
		pkt := capture.Packet{Protocol: capture.ProtocolTCP, SrcIP: "10.0.0.1", DstIP: "10.0.0.2", SrcPort: 1000, DstPort: 9000 + i%2, Payload: p}
		d.Handle(pkt)
	}
	tcp := d.Result().TCP
	if len(tcp) != 3 {
		t.Fatalf("tcp=%+v", tcp)
	}
	if tcp[0].DstPort != 9000 || tcp[1].DstPort != 9001 || tcp[2].DstPort != 9000 {
		t.Errorf("order=%+v", tcp)
	}
}

func TestDissector_OtherProtocolIgnored(t *testing.T) {
	d := newTestDissector(t)
	d.Handle(capture.Packet{Protocol: capture.ProtocolOther, Payload: []byte("x")})
	r := d.Result()
	if len(r.TCP)+len(r.UDP) != 0 {
		t.Errorf("result=%+v", r)
	}
}
