package filter

import (
	"testing"

	"netsift/internal/analyzer/capture/capturetest"
)

func TestTransportBPF(t *testing.T) {
	ins, err := TransportBPF()
	if err != nil {
		t.Fatalf("TransportBPF failed: %v", err)
	}
	if len(ins) != 11 {
		t.Errorf("Expected 11 instructions, got %d", len(ins))
	}
}

func TestPrefilter_Accept(t *testing.T) {
	p, err := NewPrefilter()
	if err != nil {
		t.Fatalf("NewPrefilter: %v", err)
	}

	tests := []struct {
		name  string
		frame []byte
		want  bool
	}{
		{"ipv4 tcp", capturetest.TCP(t, "10.0.0.1", "10.0.0.2", 1000, 80, []byte("a")), true},
		{"ipv4 udp", capturetest.UDP(t, "10.0.0.1", "10.0.0.2", 1000, 53, []byte("a")), true},
		{"ipv6 udp", capturetest.UDP6(t, "2001:db8::1", "2001:db8::2", 1000, 53, []byte("a")), true},
		{"ipv4 icmp", capturetest.ICMP(t, "10.0.0.1", "10.0.0.2"), false},
		{"arp passes through", capturetest.ARP(t), true},
		{"too short", []byte{0x00, 0x01}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Accept(tt.frame); got != tt.want {
				t.Errorf("Accept=%v, want %v", got, tt.want)
			}
		})
	}
}
