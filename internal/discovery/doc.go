// Package discovery locates Z-Wave JS Server instances on the local
// network via DNS-SD.
//
// Z-Wave JS Server advertises _zwave-js-server._tcp when mDNS is
// enabled. Controllers configured without an address use this package
// to find a server to connect to.
//
// The mDNS layer sits behind the MDNSResolver interface so tests can
// inject canned service entries without network I/O.
package discovery
