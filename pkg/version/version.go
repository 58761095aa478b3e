// Package version provides protocol version parsing, comparison, and ALPN helpers.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the protocol version implemented by this library.
const Current = "1.0"

// ProtocolVersion represents a parsed "major.minor" protocol version.
type ProtocolVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (ProtocolVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || parts[1] == "" {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return ProtocolVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// String returns the version as "major.minor".
func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v ProtocolVersion) Compatible(other ProtocolVersion) bool {
	return v.Major == other.Major
}

// ALPNProtocol returns the ALPN protocol string for a major version: "labwire/N".
func ALPNProtocol(major uint16) string {
	return fmt.Sprintf("labwire/%d", major)
}

// MajorFromALPN extracts the major version from an ALPN protocol string.
func MajorFromALPN(alpn string) (uint16, error) {
	if !strings.HasPrefix(alpn, "labwire/") {
		return 0, fmt.Errorf("not a labwire ALPN protocol: %q", alpn)
	}

	suffix := alpn[len("labwire/"):]
	if suffix == "" {
		return 0, fmt.Errorf("empty major version in ALPN: %q", alpn)
	}

	major, err := strconv.ParseUint(suffix, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid major version in ALPN %q: %w", alpn, err)
	}

	return uint16(major), nil
}

// SupportedALPNProtocols returns the ALPN protocol strings for all supported
// major versions. Currently only major version 1.
func SupportedALPNProtocols() []string {
	current, _ := Parse(Current)
	return []string{ALPNProtocol(current.Major)}
}
