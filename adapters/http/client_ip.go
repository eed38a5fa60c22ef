package authhttp

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIPFunc resolves the caller address used for rate limit keys and session event metadata.
// An empty result means unknown; rate limiting then lets the request through.
type ClientIPFunc func(r *http.Request) string

// forwardedHeaders are consulted in order when the peer is a trusted proxy.
var forwardedHeaders = []string{"CF-Connecting-IP", "X-Real-IP", "X-Forwarded-For"}

// DefaultClientIP uses the TCP peer when it is publicly routable. A private peer is most
// likely an ingress, so it resolves to "".
func DefaultClientIP() ClientIPFunc {
	return func(r *http.Request) string {
		if a, ok := peerAddr(r); ok && routable(a) {
			return a.String()
		}
		return ""
	}
}

// ClientIPFromForwardedHeaders reads the caller from proxy headers, but only when the
// peer falls inside trustedProxies.
func ClientIPFromForwardedHeaders(trustedProxies []netip.Prefix) ClientIPFunc {
	fallback := DefaultClientIP()
	return func(r *http.Request) string {
		peer, ok := peerAddr(r)
		if !ok {
			return ""
		}
		if !trusted(peer, trustedProxies) {
			return fallback(r)
		}
		for _, h := range forwardedHeaders {
			if a, ok := firstForwarded(r.Header.Get(h)); ok {
				return a.String()
			}
		}
		return fallback(r)
	}
}

func trusted(a netip.Addr, prefixes []netip.Prefix) bool {
	for _, p := range prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// firstForwarded returns the left-most routable entry of a comma-separated header value.
func firstForwarded(v string) (netip.Addr, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return netip.Addr{}, false
	}
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	a, err := netip.ParseAddr(strings.TrimSpace(v))
	if err != nil || !routable(a) {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}

func peerAddr(r *http.Request) (netip.Addr, bool) {
	if r == nil || r.RemoteAddr == "" {
		return netip.Addr{}, false
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	a, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}

func routable(a netip.Addr) bool {
	return a.IsValid() && a.IsGlobalUnicast() && !a.IsPrivate()
}
