package utils

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// HostOnly strips an optional port from "host:port", "[v6]:port" or "host".
func HostOnly(s string) string {
	if h, _, err := net.SplitHostPort(s); err == nil {
		return h
	}
	return s
}

// proxyHeaders are consulted in order when the server sits behind a
// trusted proxy. Only the left-most X-Forwarded-For entry is used.
var proxyHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// ClientAddr resolves the caller's address. With trustProxy the proxy
// headers win over RemoteAddr; header values that are not addresses are
// skipped. IPv4-mapped IPv6 addresses come back in their IPv4 form.
func ClientAddr(r *http.Request, trustProxy bool) (netip.Addr, bool) {
	if trustProxy {
		for _, h := range proxyHeaders {
			v, _, _ := strings.Cut(r.Header.Get(h), ",")
			if addr, err := netip.ParseAddr(HostOnly(strings.TrimSpace(v))); err == nil {
				return addr.Unmap(), true
			}
		}
	}
	addr, err := netip.ParseAddr(HostOnly(r.RemoteAddr))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// AddrSet is the allow list of serve mode. Plain addresses are kept as
// single-address prefixes.
type AddrSet []netip.Prefix

// ParseAddrSet parses entries like "10.0.0.0/8" or "::1". Entries that are
// neither a prefix nor an address are returned in rejected.
func ParseAddrSet(entries []string) (set AddrSet, rejected []string) {
	for _, raw := range entries {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			set = append(set, p.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(s); err == nil {
			addr = addr.Unmap()
			set = append(set, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		rejected = append(rejected, s)
	}
	return set, rejected
}

func (s AddrSet) Contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range s {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
