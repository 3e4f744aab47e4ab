package muxhandlers

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/vitalvas/relay/mux"
)

// ErrInvalidProxy is returned when a TrustedProxies entry is neither a valid
// IP address nor a valid CIDR range.
var ErrInvalidProxy = errors.New("proxy headers: invalid proxy entry")

// DefaultTrustedProxies is the set of private and loopback ranges used when
// ProxyHeadersConfig.TrustedProxies is empty: IPv4 loopback (RFC 1122),
// RFC 1918 private ranges, CGNAT (RFC 6598), IPv6 loopback (RFC 4291) and
// IPv6 unique local addresses (RFC 4193).
var DefaultTrustedProxies = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"100.64.0.0/10",
	"::1/128",
	"fc00::/7",
}

// ProxyHeadersConfig configures the ProxyHeaders middleware behaviour.
type ProxyHeadersConfig struct {
	// TrustedProxies is a list of IP addresses and CIDR ranges. Forwarding
	// headers are only honoured when the peer address is in this set.
	// Defaults to DefaultTrustedProxies.
	TrustedProxies []string

	// EnableForwarded enables the RFC 7239 Forwarded header as the lowest
	// priority source after X-Forwarded-* and X-Real-IP.
	EnableForwarded bool
}

// ProxyHeadersMiddleware returns a middleware that rewrites the request seen
// by the rest of the chain from reverse proxy headers, when the peer is a
// trusted proxy:
//
//   - RemoteAddr: X-Forwarded-For (leftmost valid IP) > X-Real-IP > Forwarded for=
//   - URL.Scheme: X-Forwarded-Proto > X-Forwarded-Scheme > Forwarded proto=
//   - Host:       X-Forwarded-Host > Forwarded host=
//
// Forwarded by= is exposed as the request header X-Forwarded-By.
func ProxyHeadersMiddleware(cfg ProxyHeadersConfig) (mux.MiddlewareFunc, error) {
	entries := cfg.TrustedProxies
	if len(entries) == 0 {
		entries = DefaultTrustedProxies
	}

	trusted, err := parseTrustedProxies(entries)
	if err != nil {
		return nil, err
	}

	enableForwarded := cfg.EnableForwarded

	return func(c *mux.Context, next mux.NextFunc) {
		r := c.Request()
		if !isTrustedPeer(r.RemoteAddr, trusted) {
			next()
			return
		}

		var fwd forwardedParams
		if enableForwarded {
			fwd = parseForwarded(r.Header.Get("Forwarded"))
		}

		if ip := clientIP(r.Header.Get("X-Forwarded-For"), r.Header.Get("X-Real-IP"), fwd.forIP); ip != "" {
			r.RemoteAddr = ip
		}

		if scheme := firstNonEmpty(proxyScheme(r.Header.Get("X-Forwarded-Proto"), r.Header.Get("X-Forwarded-Scheme")), fwd.proto); scheme != "" {
			u := *r.URL
			u.Scheme = scheme
			r.URL = &u
		}

		if host := firstNonEmpty(r.Header.Get("X-Forwarded-Host"), fwd.host); host != "" {
			r.Host = host
		}

		if fwd.by != "" {
			r.Header.Set("X-Forwarded-By", fwd.by)
		}

		next()
	}, nil
}

func parseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))

	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, entry)
			}

			prefixes = append(prefixes, p.Masked())
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, entry)
		}

		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}

	return prefixes, nil
}

// isTrustedPeer reports whether remoteAddr, with or without a port, lies in
// one of the trusted prefixes.
func isTrustedPeer(remoteAddr string, trusted []netip.Prefix) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}

	return false
}

func clientIP(xff, realIP, forwardedFor string) string {
	if xff != "" {
		return parseXForwardedFor(xff)
	}

	if realIP != "" {
		realIP = strings.TrimSpace(realIP)
		if _, err := netip.ParseAddr(realIP); err == nil {
			return realIP
		}
		return ""
	}

	return forwardedFor
}

// parseXForwardedFor returns the leftmost valid IP of an X-Forwarded-For
// value, or an empty string.
func parseXForwardedFor(xff string) string {
	for part := range strings.SplitSeq(xff, ",") {
		candidate := strings.TrimSpace(part)
		if _, err := netip.ParseAddr(candidate); err == nil {
			return candidate
		}
	}

	return ""
}

// proxyScheme returns the first present header value when it is http or
// https. A present but unsupported value disables the fallbacks.
func proxyScheme(values ...string) string {
	for _, v := range values {
		if v == "" {
			continue
		}

		if v = normalizeScheme(v); v != "" {
			return v
		}

		return ""
	}

	return ""
}

func normalizeScheme(v string) string {
	v = strings.ToLower(strings.Trim(strings.TrimSpace(v), `"`))
	if v == "http" || v == "https" {
		return v
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// forwardedParams holds the directives of the first element of a Forwarded
// header.
type forwardedParams struct {
	forIP string
	by    string
	proto string
	host  string
}

// parseForwarded reads the first (client-facing) element of an RFC 7239
// Forwarded header.
func parseForwarded(header string) forwardedParams {
	var result forwardedParams

	first, _, _ := strings.Cut(header, ",")

	for param := range strings.SplitSeq(first, ";") {
		key, val, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok {
			continue
		}

		val = strings.TrimSpace(val)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "for":
			result.forIP = parseForwardedIP(val)
		case "proto":
			result.proto = normalizeScheme(val)
		case "by":
			result.by = strings.Trim(val, `"`)
		case "host":
			result.host = strings.Trim(val, `"`)
		}
	}

	return result
}

// parseForwardedIP extracts the address of a for= value. IPv6 addresses are
// quoted and bracketed, optionally with a port (RFC 7239 Section 6):
//
//	for=192.0.2.60
//	for="[2001:db8::1]:4711"
//	for="_hidden"
func parseForwardedIP(val string) string {
	val = strings.Trim(val, `"`)

	if host, _, err := net.SplitHostPort(val); err == nil {
		val = host
	} else {
		val = strings.TrimSuffix(strings.TrimPrefix(val, "["), "]")
	}

	if _, err := netip.ParseAddr(val); err != nil {
		return ""
	}

	return val
}
