package inventory

import (
	"bytes"
	"encoding/json"
	"net/netip"
)

// IP is an optional address. The zero value is absent. Upstream sends null,
// an empty string or nothing at all for a missing address; all three, as well
// as values that do not parse as an address, decode to absent.
type IP struct {
	addr netip.Addr
}

// ParseIP returns the address in s, or the absent IP when s is not an address.
func ParseIP(s string) IP {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return IP{}
	}
	return IP{addr: addr}
}

func (ip IP) IsPresent() bool {
	return ip.addr.IsValid()
}

// String returns the address, or "" when absent.
func (ip IP) String() string {
	if !ip.IsPresent() {
		return ""
	}
	return ip.addr.String()
}

func (ip IP) MarshalJSON() ([]byte, error) {
	if !ip.IsPresent() {
		return []byte("null"), nil
	}
	return json.Marshal(ip.addr.String())
}

func (ip *IP) UnmarshalJSON(data []byte) error {
	*ip = IP{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Non-string values are treated like a missing address.
		return nil
	}
	*ip = ParseIP(s)
	return nil
}

// MarshalYAML renders absent as null.
func (ip IP) MarshalYAML() (any, error) {
	if !ip.IsPresent() {
		return nil, nil
	}
	return ip.addr.String(), nil
}
