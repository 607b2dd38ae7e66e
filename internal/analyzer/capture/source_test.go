package capture

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/google/gopacket/layers"

	"netsift/internal/analyzer/capture/capturetest"
)

func TestOpenFile_Unusable(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		want error
	}{
		{"missing", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.pcap") }, ErrMissing},
		{"empty", func(t *testing.T) string { return capturetest.WriteFile(t, "empty.pcap", nil) }, ErrEmpty},
		{"garbage", func(t *testing.T) string { return capturetest.WriteFile(t, "bad.pcap", []byte("this is not a capture file at all")) }, ErrUnreadable},
		{"short header", func(t *testing.T) string { return capturetest.WriteFile(t, "short.pcap", []byte{0xd4, 0xc3, 0xb2, 0xa1, 0x02}) }, ErrUnreadable},
		{"directory", func(t *testing.T) string { return t.TempDir() }, ErrUnreadable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := OpenFile(tt.path(t))
			if err == nil {
				s.Close()
				t.Fatalf("expected error")
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err=%v, want %v", err, tt.want)
			}
		})
	}
}

func TestOpenFile_ReadsFrames(t *testing.T) {
	frames := [][]byte{
		capturetest.TCP(t, "10.0.0.1", "10.0.0.2", 1234, 80, []byte("x")),
		capturetest.UDP(t, "10.0.0.1", "10.0.0.2", 1234, 53, []byte("y")),
	}
	for _, tc := range []struct {
		format string
		path   string
	}{
		{"pcap", capturetest.WritePcap(t, layers.LinkTypeEthernet, frames...)},
		{"pcapng", capturetest.WritePcapNg(t, frames...)},
	} {
		t.Run(tc.format, func(t *testing.T) {
			s, err := OpenFile(tc.path)
			if err != nil {
				t.Fatalf("OpenFile: %v", err)
			}
			defer s.Close()

			if s.Format() != tc.format {
				t.Errorf("format=%s", s.Format())
			}
			if s.LinkType() != layers.LinkTypeEthernet {
				t.Errorf("link type=%s", s.LinkType())
			}
			n := 0
			for {
				f, err := s.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatalf("Next: %v", err)
				}
				if len(f.Data) != len(frames[n]) {
					t.Errorf("frame %d: len=%d want %d", n, len(f.Data), len(frames[n]))
				}
				n++
			}
			if n != len(frames) {
				t.Errorf("read %d frames, want %d", n, len(frames))
			}
		})
	}
}

func TestSource_CloseTwice(t *testing.T) {
	path := capturetest.WritePcap(t, layers.LinkTypeEthernet)
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestOpenFile_IgnoresSmallHeaderSnaplen(t *testing.T) {
	frames := [][]byte{
		capturetest.UDP(t, "10.0.0.1", "10.0.0.2", 1234, 9999, []byte("x")),
		capturetest.TCP(t, "10.0.0.1", "10.0.0.2", 1234, 80, []byte("GET / HTTP/1.1\r\nHost: test.local\r\n\r\n")),
		capturetest.UDP(t, "10.0.0.1", "10.0.0.2", 1234, 53, make([]byte, 100)),
	}
	s, err := OpenFile(capturetest.WritePcapSnaplen(t, 64, layers.LinkTypeEthernet, frames...))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer s.Close()

	for i, want := range frames {
		f, err := s.Next()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if len(f.Data) != len(want) || f.CaptureLength != len(want) {
			t.Errorf("frame %d: len=%d want %d", i, len(f.Data), len(want))
		}
	}
	if _, err := s.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestOpenFile_PcapNgMixedInterfaces(t *testing.T) {
	eth := capturetest.TCP(t, "10.0.0.1", "10.0.0.2", 1234, 80, []byte("x"))
	raw := capturetest.UDP(t, "10.0.0.3", "10.0.0.4", 1234, 53, []byte("y"))[14:]
	path := capturetest.WritePcapNgInterfaces(t,
		[]layers.LinkType{layers.LinkTypeEthernet, layers.LinkTypeRaw},
		capturetest.NgFrame{Interface: 0, Data: eth},
		capturetest.NgFrame{Interface: 1, Data: raw},
	)
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer s.Close()

	if s.LinkType() != layers.LinkTypeEthernet {
		t.Fatalf("link type=%s", s.LinkType())
	}
	f, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, foreign := f.ForeignLink(); foreign {
		t.Errorf("first frame belongs to the file link type")
	}
	f, err = s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if lt, foreign := f.ForeignLink(); !foreign || lt != layers.LinkTypeRaw {
		t.Errorf("second frame link=%s foreign=%v", lt, foreign)
	}
	if len(f.Data) != len(raw) {
		t.Errorf("len=%d want %d", len(f.Data), len(raw))
	}
	if _, err := s.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestOpenFile_PcapNgWithoutPackets(t *testing.T) {
	s, err := OpenFile(capturetest.WritePcapNg(t))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer s.Close()
	if s.LinkType() != layers.LinkTypeEthernet {
		t.Errorf("link type=%s", s.LinkType())
	}
	if _, err := s.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}
