// Package ipaddr normalizes the network addresses nodes present themselves
// with. Nodes behind dual-stack listeners show up as IPv4-mapped IPv6
// (::ffff:x.x.x.x); the embedded IPv4 form is the canonical one everywhere an
// address is stored or probed.
package ipaddr

import (
	"net"
	"strings"
)

// Normalize unwraps an IPv4-mapped IPv6 address to its embedded IPv4 form.
// Anything else passes through unchanged.
func Normalize(addr string) string {
	if strings.Contains(addr, "::ffff:") {
		if v4 := strings.SplitN(addr, "::ffff:", 2)[1]; net.ParseIP(v4) != nil {
			return v4
		}
	}
	return addr
}

// PollTarget validates an address as a liveness-probe target: a syntactically
// valid IPv4 address, or an IPv6 address carrying an embedded IPv4 form.
// Returns the normalized IPv4 target and whether the address qualifies.
func PollTarget(addr string) (string, bool) {
	ip := net.ParseIP(addr)
	if ip == nil {
		return "", false
	}
	if ip.To4() != nil && !strings.Contains(addr, ":") {
		return addr, true
	}
	// IPv6 notation: only the ::ffff: mapped form embeds a probeable IPv4.
	if strings.Contains(addr, "::ffff:") {
		return Normalize(addr), true
	}
	return "", false
}

// FromRequest extracts the caller address from an http RemoteAddr, dropping
// the port and unwrapping the mapped form.
func FromRequest(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return Normalize(host)
}
