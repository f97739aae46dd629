package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

// Service constants for Z-Wave JS Server DNS-SD announcements.
const (
	// ServiceZWaveJS is the DNS-SD service type Z-Wave JS Server
	// advertises when mDNS discovery is enabled.
	ServiceZWaveJS = "_zwave-js-server._tcp"

	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."

	// DefaultBrowseTimeout bounds a browse when the caller's context
	// carries no deadline.
	DefaultBrowseTimeout = 10 * time.Second
)

// Server describes one discovered Z-Wave JS Server instance.
type Server struct {
	// InstanceName is the DNS-SD instance name.
	InstanceName string

	// HostName is the advertised target host.
	HostName string

	// Port is the websocket port.
	Port int

	// IPs contains the resolved addresses, IPv4 first.
	IPs []net.IP
}

// URL returns the websocket URL for this server, preferring a resolved
// IP over the mDNS hostname so the address works without mDNS-aware
// name resolution.
func (s Server) URL() string {
	host := strings.TrimSuffix(s.HostName, ".")
	if len(s.IPs) > 0 {
		host = s.IPs[0].String()
		if s.IPs[0].To4() == nil {
			host = "[" + host + "]"
		}
	}
	return fmt.Sprintf("ws://%s:%d", host, s.Port)
}

// MDNSResolver is the mDNS browse surface. Kept as an interface for
// dependency injection in tests.
type MDNSResolver interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// zeroconfResolver is the production implementation using
// grandcat/zeroconf.
type zeroconfResolver struct {
	resolver *zeroconf.Resolver
}

func newZeroconfResolver() (*zeroconfResolver, error) {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}
	return &zeroconfResolver{resolver: r}, nil
}

func (z *zeroconfResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return z.resolver.Browse(ctx, service, domain, entries)
}

// Config holds configuration for the Browser.
type Config struct {
	// MDNSResolver is the underlying mDNS implementation. If nil, the
	// default zeroconf resolver is used.
	MDNSResolver MDNSResolver

	// BrowseTimeout is the timeout for browse operations. If zero,
	// DefaultBrowseTimeout is used.
	BrowseTimeout time.Duration
}

// Browser discovers Z-Wave JS Server instances via DNS-SD.
type Browser struct {
	resolver MDNSResolver
	timeout  time.Duration
}

// NewBrowser creates a Browser with the given configuration.
func NewBrowser(cfg Config) (*Browser, error) {
	resolver := cfg.MDNSResolver
	if resolver == nil {
		zr, err := newZeroconfResolver()
		if err != nil {
			return nil, fmt.Errorf("creating mdns resolver: %w", err)
		}
		resolver = zr
	}

	timeout := cfg.BrowseTimeout
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}

	return &Browser{resolver: resolver, timeout: timeout}, nil
}

// Discover browses for Z-Wave JS Server instances until the timeout
// expires, returning every instance seen.
func (b *Browser) Discover(ctx context.Context) ([]Server, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	entries := make(chan *zeroconf.ServiceEntry)
	browseErr := make(chan error, 1)

	go func() {
		defer close(entries)
		browseErr <- b.resolver.Browse(ctx, ServiceZWaveJS, DefaultDomain, entries)
	}()

	var servers []Server
	for entry := range entries {
		if entry == nil {
			continue
		}
		servers = append(servers, entryToServer(entry))
	}

	if err := <-browseErr; err != nil && len(servers) == 0 && !isContextEnd(err) {
		return nil, fmt.Errorf("%w: %w", ErrBrowseFailed, err)
	}
	if len(servers) == 0 {
		return nil, ErrNoServersFound
	}
	return servers, nil
}

// DiscoverFirst returns the first instance found, for callers that just
// need an address to connect to.
func (b *Browser) DiscoverFirst(ctx context.Context) (*Server, error) {
	servers, err := b.Discover(ctx)
	if err != nil {
		return nil, err
	}
	return &servers[0], nil
}

// entryToServer converts a zeroconf entry, ordering IPv4 before IPv6 so
// URL favors the address most likely to be routable.
func entryToServer(entry *zeroconf.ServiceEntry) Server {
	ips := make([]net.IP, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	ips = append(ips, entry.AddrIPv4...)
	ips = append(ips, entry.AddrIPv6...)

	return Server{
		InstanceName: entry.Instance,
		HostName:     entry.HostName,
		Port:         entry.Port,
		IPs:          ips,
	}
}

func isContextEnd(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
