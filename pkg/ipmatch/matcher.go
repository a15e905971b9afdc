// Package ipmatch tests IP addresses against mixed literal/CIDR/wildcard
// pattern lists, for both IPv4 and IPv6.
package ipmatch

import (
	"net/netip"
	"strings"
)

// Wildcard matches every address when it appears in a pattern list.
const Wildcard = "*"

// IsValidIP reports whether s is a literal IPv4 or IPv6 address.
func IsValidIP(s string) bool {
	_, err := netip.ParseAddr(s)
	return err == nil
}

// IsValidPattern reports whether s is a literal address, a CIDR range with
// in-bounds mask (0-32 for IPv4, 0-128 for IPv6), or the wildcard.
func IsValidPattern(s string) bool {
	if s == Wildcard {
		return true
	}
	if strings.Contains(s, "/") {
		_, err := netip.ParsePrefix(s)
		return err == nil
	}
	return IsValidIP(s)
}

// matches reports whether ip falls under a single pattern. Unparseable
// patterns never match.
func matches(ip netip.Addr, pattern string) bool {
	if pattern == Wildcard {
		return true
	}
	if strings.Contains(pattern, "/") {
		prefix, err := netip.ParsePrefix(pattern)
		if err != nil {
			return false
		}
		return prefix.Masked().Contains(ip)
	}
	addr, err := netip.ParseAddr(pattern)
	if err != nil {
		return false
	}
	return addr.Unmap() == ip
}

// MatchesInclusions reports whether ip passes the inclusion list. An empty
// list means unrestricted.
func MatchesInclusions(ip string, inclusions []string) bool {
	if len(inclusions) == 0 {
		return true
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, pattern := range inclusions {
		if matches(addr, pattern) {
			return true
		}
	}
	return false
}

// MatchesExclusions reports whether ip is excluded. An empty list excludes
// nothing.
func MatchesExclusions(ip string, exclusions []string) bool {
	if len(exclusions) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, pattern := range exclusions {
		if matches(addr, pattern) {
			return true
		}
	}
	return false
}

// IsAllowed resolves an inclusion/exclusion pair for an address. Exclusions
// are checked first and win unconditionally; a non-empty inclusion list is a
// passlist; an empty one allows.
func IsAllowed(ip string, inclusions, exclusions []string) bool {
	if MatchesExclusions(ip, exclusions) {
		return false
	}
	return MatchesInclusions(ip, inclusions)
}

// Anonymize zeroes the last IPv4 octet or the last IPv6 group so addresses
// can be logged without identifying a single host. Invalid input is
// returned unchanged.
func Anonymize(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ip
	}
	addr = addr.Unmap()

	if addr.Is4() {
		b := addr.As4()
		b[3] = 0
		return netip.AddrFrom4(b).String()
	}

	b := addr.As16()
	b[14] = 0
	b[15] = 0
	return netip.AddrFrom16(b).String()
}
