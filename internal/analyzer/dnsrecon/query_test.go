package dnsrecon

import (
	"errors"
	"testing"

	"github.com/miekg/dns"
)

type fakeResolver struct {
	answers map[string]string
	calls   int
}

func (f *fakeResolver) LookupIPv4(host string) (string, error) {
	f.calls++
	if ip, ok := f.answers[host]; ok {
		return ip, nil
	}
	return "", errors.New("no such host")
}

func query(t *testing.T, name string) []byte {
	t.Helper()
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	b, err := m.Pack()
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	return b
}

func TestQueryName(t *testing.T) {
	name, ok := QueryName(query(t, "example.com"))
	if !ok || name != "example.com" {
		t.Fatalf("QueryName=%q,%v", name, ok)
	}

	noQuestion, _ := new(dns.Msg).Pack()
	if _, ok := QueryName(noQuestion); ok {
		t.Error("message without question should be rejected")
	}
	if _, ok := QueryName([]byte{0x12, 0x34, 0x01}); ok {
		t.Error("truncated header should be rejected")
	}
	full := query(t, "example.com")
	if _, ok := QueryName(full[:len(full)-3]); ok {
		t.Error("truncated question should be rejected")
	}
	if _, ok := QueryName(query(t, ".")); ok {
		t.Error("root query should be rejected")
	}
}

func TestObserve_Resolves(t *testing.T) {
	r := &fakeResolver{answers: map[string]string{"evil.example": "203.0.113.7"}}
	e := NewExtractor(r, DefaultIgnoredHosts)

	rec, ok := e.Observe(query(t, "evil.example"))
	if !ok {
		t.Fatal("Observe should record a fresh hostname")
	}
	if rec.Hostname != "evil.example" || rec.IP != "203.0.113.7" {
		t.Errorf("rec=%+v", rec)
	}
}

func TestObserve_ResolutionFailureKeepsRecord(t *testing.T) {
	e := NewExtractor(&fakeResolver{}, nil)
	rec, ok := e.Observe(query(t, "nxdomain.example"))
	if !ok {
		t.Fatal("resolution failure must still produce a record")
	}
	if rec.IP != "" {
		t.Errorf("Expected empty ip, got %q", rec.IP)
	}
}

func TestObserve_Dedup(t *testing.T) {
	r := &fakeResolver{}
	e := NewExtractor(r, nil)
	n := 0
	for i := 0; i < 5; i++ {
		if _, ok := e.Observe(query(t, "repeat.example")); ok {
			n++
		}
	}
	if n != 1 {
		t.Errorf("Expected 1 record, got %d", n)
	}
	if r.calls != 1 {
		t.Errorf("Expected 1 lookup, got %d", r.calls)
	}
}

func TestObserve_Filters(t *testing.T) {
	r := &fakeResolver{}
	e := NewExtractor(r, DefaultIgnoredHosts)

	for _, name := range []string{
		"4.3.2.1.in-addr.arpa",
		"x.in-addr.arpa.example",
		"time.windows.com",
	} {
		if _, ok := e.Observe(query(t, name)); ok {
			t.Errorf("%s should be filtered", name)
		}
		if e.Seen(name) {
			t.Errorf("%s must not enter the seen set", name)
		}
	}
	if r.calls != 0 {
		t.Errorf("filtered names must not be resolved, got %d lookups", r.calls)
	}
}

func TestObserve_NilResolver(t *testing.T) {
	e := NewExtractor(nil, nil)
	rec, ok := e.Observe(query(t, "offline.example"))
	if !ok || rec.IP != "" {
		t.Fatalf("rec=%+v ok=%v", rec, ok)
	}
}

func TestExtractor_FreshStatePerRun(t *testing.T) {
	payload := query(t, "again.example")
	if _, ok := NewExtractor(nil, nil).Observe(payload); !ok {
		t.Fatal("first run should record")
	}
	if _, ok := NewExtractor(nil, nil).Observe(payload); !ok {
		t.Fatal("second run must not inherit dedup state")
	}
}

func FuzzQueryName(f *testing.F) {
	m := new(dns.Msg)
	m.SetQuestion("seed.example.", dns.TypeA)
	seed, _ := m.Pack()
	f.Add(seed)
	f.Add([]byte{})
	f.Fuzz(func(t *testing.T, payload []byte) {
		name, ok := QueryName(payload)
		if ok && name == "" {
			t.Fatal("accepted empty name")
		}
	})
}
