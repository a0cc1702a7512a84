package renderx

import (
	"net"
	"net/url"
	"strings"
)

// blockedCIDRs is the private/link-local/loopback address space the worker
// must never be pointed at (§4.5). 0.0.0.0/8 covers the "current network"
// literal clients sometimes use to reach the host loopback; 169.254.0.0/16
// also covers the cloud metadata endpoint at 169.254.169.254.
var blockedCIDRs = mustParseCIDRs(
	"0.0.0.0/8",
	"10.0.0.0/8",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.168.0.0/16",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic("renderx: invalid CIDR literal " + c)
		}
		nets = append(nets, n)
	}
	return nets
}

// AddBlockedCIDRs extends the default deny list with operator-supplied
// ranges (internal VPC blocks, a cloud provider's own metadata ranges,
// etc.), read from config at startup. Invalid entries are skipped rather
// than panicking, since they come from the environment, not a compiled-in
// literal.
func AddBlockedCIDRs(cidrs ...string) {
	for _, c := range cidrs {
		if _, n, err := net.ParseCIDR(c); err == nil {
			blockedCIDRs = append(blockedCIDRs, n)
		}
	}
}

// ValidateURL enforces the SSRF-safe policy: http/https only, no "localhost"
// or "::1" host, and no IP-literal host in loopback, link-local, or private
// address space. Other hostnames are accepted without a DNS lookup. Hostname
// comparison is case-insensitive.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL("not a valid URL")
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURL("scheme must be http or https")
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ErrInvalidURL("missing host")
	}
	if host == "localhost" || host == "::1" {
		return ErrInvalidURL("loopback host is not allowed")
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return ErrInvalidURL("IP literal is in a blocked range")
		}
		return nil
	}

	// A bare hostname can't be checked against the CIDR list without a DNS
	// lookup, which the request-validation path intentionally avoids (no
	// network I/O at admission time, and DNS can be rebound between check
	// and fetch anyway). The capture engine, which does the real fetch, is
	// out of scope and is expected to re-resolve and re-check immediately
	// before dialing.
	return nil
}

func isBlockedIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	for _, n := range blockedCIDRs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
