// Package discovery advertises and finds TUIO receivers on the local network over mDNS.
package discovery

import (
	"context"
	"net"
	"strconv"

	"github.com/grandcat/zeroconf"
	"github.com/pkg/errors"
)

const (
	// ServiceType is the DNS-SD service of a TUIO 2.0 receiver
	ServiceType = "_tuio2._udp"
	// Domain is the mDNS domain
	Domain = "local."
)

// ErrNotFound is returned when no receiver answered before the deadline.
var ErrNotFound = errors.New("no tuio receiver found")

// Endpoint is one discovered receiver
type Endpoint struct {
	Instance string
	Host     string
	Port     int
}

// Address returns host:port
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Advertisement keeps a service registered until Shutdown
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise registers a receiver listening on port on every interface
func Advertise(instance string, port int, text []string) (*Advertisement, error) {
	server, err := zeroconf.Register(instance, ServiceType, Domain, port, text, nil)
	if err != nil {
		return nil, errors.Wrap(err, "register mdns service")
	}
	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the service
func (a *Advertisement) Shutdown() {
	a.server.Shutdown()
}

// Lookup returns the first receiver found before ctx is done
func Lookup(ctx context.Context) (Endpoint, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return Endpoint{}, errors.Wrap(err, "mdns resolver")
	}
	browseCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(browseCtx, ServiceType, Domain, entries); err != nil {
		return Endpoint{}, errors.Wrap(err, "browse mdns")
	}
	for {
		select {
		case <-browseCtx.Done():
			return Endpoint{}, errors.Wrap(ErrNotFound, browseCtx.Err().Error())
		case entry, ok := <-entries:
			if !ok {
				return Endpoint{}, ErrNotFound
			}
			if endpoint, ok := endpointFromEntry(entry); ok {
				return endpoint, nil
			}
		}
	}
}

// endpointFromEntry prefers an IPv4 address, then IPv6, then the host name
func endpointFromEntry(entry *zeroconf.ServiceEntry) (Endpoint, bool) {
	if entry == nil || entry.Port <= 0 {
		return Endpoint{}, false
	}
	endpoint := Endpoint{Instance: entry.Instance, Port: entry.Port}
	switch {
	case len(entry.AddrIPv4) > 0:
		endpoint.Host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		endpoint.Host = entry.AddrIPv6[0].String()
	case entry.HostName != "":
		endpoint.Host = entry.HostName
	default:
		return Endpoint{}, false
	}
	return endpoint, true
}
