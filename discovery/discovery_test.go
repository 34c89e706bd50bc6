package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestEndpointFromEntry(t *testing.T) {
	entry := zeroconf.NewServiceEntry("table", ServiceType, Domain)
	entry.Port = 5001
	entry.AddrIPv6 = []net.IP{net.ParseIP("fe80::1")}
	entry.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.20")}

	endpoint, ok := endpointFromEntry(entry)
	if !ok {
		t.Fatalf("entry with addresses must resolve")
	}
	if endpoint.Host != "192.168.1.20" || endpoint.Port != 5001 || endpoint.Instance != "table" {
		t.Errorf("unexpected endpoint %+v", endpoint)
	}
	if endpoint.Address() != "192.168.1.20:5001" {
		t.Errorf("address should be 192.168.1.20:5001, got %s", endpoint.Address())
	}

	entry.AddrIPv4 = nil
	endpoint, _ = endpointFromEntry(entry)
	if endpoint.Address() != "[fe80::1]:5001" {
		t.Errorf("address should be [fe80::1]:5001, got %s", endpoint.Address())
	}
}

func TestEndpointFromEntryIncomplete(t *testing.T) {
	entry := zeroconf.NewServiceEntry("table", ServiceType, Domain)
	entry.Port = 5001
	if _, ok := endpointFromEntry(entry); ok {
		t.Errorf("entry without any address must be skipped")
	}
	entry.HostName = "table.local."
	entry.Port = 0
	if _, ok := endpointFromEntry(entry); ok {
		t.Errorf("entry without port must be skipped")
	}
	if _, ok := endpointFromEntry(nil); ok {
		t.Errorf("nil entry must be skipped")
	}
}
