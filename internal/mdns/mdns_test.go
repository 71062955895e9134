package mdns

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestTXTIsSorted(t *testing.T) {
	txt := TXT(map[string]string{"run": "abc", "path": "/api/ws", "file": "out"})
	want := []string{"file=out", "path=/api/ws", "run=abc"}
	if len(txt) != len(want) {
		t.Fatalf("unexpected txt %v", txt)
	}
	for i := range want {
		if txt[i] != want[i] {
			t.Fatalf("entry %d: want %q got %q", i, want[i], txt[i])
		}
	}
}

func TestHostFromEntry(t *testing.T) {
	e := zeroconf.NewServiceEntry(`radar\ on\ bench`, Service, domain)
	e.HostName = "bench.local."
	e.Port = 8080
	e.AddrIPv4 = []net.IP{net.IPv4(192, 168, 1, 5)}
	e.AddrIPv6 = []net.IP{net.ParseIP("fe80::1")}
	e.Text = []string{"run=abc"}

	h := hostFromEntry(e)
	if h.Instance != "radar on bench" {
		t.Fatalf("instance not cleaned: %q", h.Instance)
	}
	if len(h.Addresses) != 2 || h.Port != 8080 || h.TXT[0] != "run=abc" {
		t.Fatalf("unexpected host %+v", h)
	}
}
