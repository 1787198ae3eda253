// Package netif discovers the wired Ethernet adapters frames can be sent on.
package netif

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
)

// ErrNotFound is returned when no adapter matches a lookup.
var ErrNotFound = errors.New("netif: adapter not found")

// Adapter is a usable Ethernet interface.
type Adapter struct {
	Name         string `json:"name"`
	HardwareAddr string `json:"hardware_addr"` // lowercase colon notation
	Index        int    `json:"index"`
	Up           bool   `json:"up"`
}

// Filter decides which interfaces count as wired Ethernet adapters.
type Filter struct {
	// ExcludePrefixes drops interfaces whose name starts with any entry.
	ExcludePrefixes []string

	// ExcludeKeywords drops interfaces whose lowercased name contains any entry.
	ExcludeKeywords []string

	// IncludeDown keeps interfaces that are administratively down.
	IncludeDown bool
}

// DefaultExcludePrefixes are virtual, container and hypervisor interfaces.
var DefaultExcludePrefixes = []string{"vir", "docker", "br-", "veth", "vmnet", "vboxnet"}

// DefaultExcludeKeywords match wireless interfaces.
var DefaultExcludeKeywords = []string{"wl", "wifi"}

// DefaultFilter returns the filter used by ListAdapters.
func DefaultFilter() Filter {
	return Filter{
		ExcludePrefixes: slices.Clone(DefaultExcludePrefixes),
		ExcludeKeywords: slices.Clone(DefaultExcludeKeywords),
	}
}

var nullAddr = make(net.HardwareAddr, 6)

// Allow reports whether iface passes the filter.
func (f Filter) Allow(iface net.Interface) bool {
	if iface.Flags&net.FlagLoopback != 0 || iface.Name == "lo" {
		return false
	}
	for _, p := range f.ExcludePrefixes {
		if strings.HasPrefix(iface.Name, p) {
			return false
		}
	}
	lower := strings.ToLower(iface.Name)
	for _, k := range f.ExcludeKeywords {
		if strings.Contains(lower, k) {
			return false
		}
	}
	if !f.IncludeDown && iface.Flags&net.FlagUp == 0 {
		return false
	}
	if len(iface.HardwareAddr) != 6 || bytes.Equal(iface.HardwareAddr, nullAddr) {
		return false
	}
	return true
}

// Select applies the filter to ifaces, sorted by name.
func (f Filter) Select(ifaces []net.Interface) []Adapter {
	var out []Adapter
	for _, iface := range ifaces {
		if !f.Allow(iface) {
			continue
		}
		out = append(out, Adapter{
			Name:         iface.Name,
			HardwareAddr: iface.HardwareAddr.String(),
			Index:        iface.Index,
			Up:           iface.Flags&net.FlagUp != 0,
		})
	}
	slices.SortFunc(out, func(a, b Adapter) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Adapters lists the host's interfaces that pass the filter.
func (f Filter) Adapters() ([]Adapter, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}
	return f.Select(ifaces), nil
}

// ListAdapters returns the host's wired Ethernet adapters using DefaultFilter.
func ListAdapters() ([]Adapter, error) {
	return DefaultFilter().Adapters()
}

// IsUp reports whether the named interface exists and is up.
func IsUp(name string) bool {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return false
	}
	return iface.Flags&net.FlagUp != 0
}

// ByHardwareAddr returns the adapter in adapters whose address equals addr.
func ByHardwareAddr(adapters []Adapter, addr string) (Adapter, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(addr))
	if err != nil {
		return Adapter{}, fmt.Errorf("parsing %q: %w", addr, err)
	}
	want := hw.String()
	for _, a := range adapters {
		if a.HardwareAddr == want {
			return a, nil
		}
	}
	return Adapter{}, fmt.Errorf("%w: %s", ErrNotFound, want)
}

// HardwareAddr returns the 6-byte address of the named interface.
func HardwareAddr(name string) (net.HardwareAddr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if len(iface.HardwareAddr) != 6 {
		return nil, fmt.Errorf("%w: %s has no Ethernet address", ErrNotFound, name)
	}
	return iface.HardwareAddr, nil
}
