package sqlite

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"netsift/internal/server/storage"
	"netsift/pkg/model"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "reports.sqlite"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleReport(id, src string, created time.Time) *model.Report {
	res := model.NewResult()
	res.TCP = append(res.TCP,
		model.Connection{Src: src, Dst: "93.184.216.34", SrcPort: 49152, DstPort: 80},
		model.Connection{Src: "93.184.216.34", Dst: src, SrcPort: 80, DstPort: 49152},
	)
	res.UDP = append(res.UDP, model.Connection{Src: src, Dst: "8.8.8.8", SrcPort: 5353, DstPort: 53})
	res.HTTP = append(res.HTTP, model.HTTPRequest{
		Host:      "example.com",
		Port:      80,
		Data:      []byte("GET /a HTTP/1.1\r\nHost: example.com\r\n\r\n"),
		URI:       "http://example.com/a",
		Body:      []byte{},
		Path:      "/a",
		UserAgent: "curl/8.0",
		Version:   "1.1",
		Method:    "GET",
	})
	res.DNS = append(res.DNS, model.DNSRequest{Hostname: "example.com", IP: "93.184.216.34"})
	return &model.Report{ID: id, CapturePath: "/tmp/" + id + ".pcap", CreatedAt: created, Result: res}
}

func TestStore_InsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	want := sampleReport("r1", "10.0.0.5", now)
	if err := s.Insert(ctx, want); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := s.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.CapturePath != want.CapturePath || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected header: %+v", got)
	}
	if len(got.Result.TCP) != 2 || got.Result.TCP[1].SrcPort != 80 {
		t.Fatalf("tcp order lost: %+v", got.Result.TCP)
	}
	if len(got.Result.UDP) != 1 || got.Result.UDP[0].DstPort != 53 {
		t.Fatalf("unexpected udp: %+v", got.Result.UDP)
	}
	if len(got.Result.HTTP) != 1 {
		t.Fatalf("expected 1 http request, got %d", len(got.Result.HTTP))
	}
	h := got.Result.HTTP[0]
	if h.URI != "http://example.com/a" || h.UserAgent != "curl/8.0" || !bytes.Equal(h.Data, want.Result.HTTP[0].Data) {
		t.Fatalf("unexpected http request: %+v", h)
	}
	if len(got.Result.DNS) != 1 || got.Result.DNS[0].IP != "93.184.216.34" {
		t.Fatalf("unexpected dns: %+v", got.Result.DNS)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_EmptyResult(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rep := &model.Report{ID: "empty", CreatedAt: time.Now().UTC(), Result: model.NewResult()}
	if err := s.Insert(ctx, rep); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	got, err := s.Get(ctx, "empty")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Result.TCP == nil || got.Result.DNS == nil {
		t.Fatalf("expected non-nil empty sequences: %+v", got.Result)
	}
	if len(got.Result.TCP)+len(got.Result.UDP)+len(got.Result.HTTP)+len(got.Result.DNS) != 0 {
		t.Fatalf("expected empty result: %+v", got.Result)
	}
}

func TestStore_QueryByIP(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for _, rep := range []*model.Report{
		sampleReport("old", "10.0.0.5", base.Add(-time.Hour)),
		sampleReport("new", "10.0.0.5", base),
		sampleReport("other", "10.0.0.9", base),
	} {
		if err := s.Insert(ctx, rep); err != nil {
			t.Fatalf("Insert %s failed: %v", rep.ID, err)
		}
	}

	got, err := s.QueryByIP(ctx, "10.0.0.5", 10)
	if err != nil {
		t.Fatalf("QueryByIP failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(got))
	}
	if got[0].ID != "new" || got[1].ID != "old" {
		t.Fatalf("expected newest first, got %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].TCPCount != 2 || got[0].HTTPCount != 1 || got[0].DNSCount != 1 {
		t.Fatalf("unexpected counts: %+v", got[0])
	}

	got, err = s.QueryByIP(ctx, "10.0.0.5", 1)
	if err != nil {
		t.Fatalf("QueryByIP failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("limit ignored: %d", len(got))
	}

	got, err = s.QueryByIP(ctx, "172.16.0.1", 10)
	if err != nil {
		t.Fatalf("QueryByIP miss failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected 0 summaries, got %d", len(got))
	}
}

func TestStore_InsertRejectsMissingID(t *testing.T) {
	s := newTestStore(t)
	if err := s.Insert(context.Background(), &model.Report{}); err == nil {
		t.Fatalf("expected error for report without id")
	}
}
