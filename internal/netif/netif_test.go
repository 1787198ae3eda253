package netif

import (
	"errors"
	"net"
	"testing"
)

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	hw, err := net.ParseMAC(s)
	if err != nil {
		t.Fatalf("ParseMAC(%q) error = %v", s, err)
	}
	return hw
}

func TestFilterAllow(t *testing.T) {
	up := net.FlagUp | net.FlagBroadcast
	mac := mustMAC(t, "02:00:00:00:00:01")

	tests := []struct {
		name  string
		iface net.Interface
		want  bool
	}{
		{"wired up", net.Interface{Name: "eth0", Flags: up, HardwareAddr: mac}, true},
		{"predictable name", net.Interface{Name: "enp3s0", Flags: up, HardwareAddr: mac}, true},
		{"loopback", net.Interface{Name: "lo", Flags: up | net.FlagLoopback}, false},
		{"docker", net.Interface{Name: "docker0", Flags: up, HardwareAddr: mac}, false},
		{"bridge", net.Interface{Name: "br-4f2a", Flags: up, HardwareAddr: mac}, false},
		{"veth", net.Interface{Name: "veth12ab", Flags: up, HardwareAddr: mac}, false},
		{"libvirt", net.Interface{Name: "virbr0", Flags: up, HardwareAddr: mac}, false},
		{"vmware", net.Interface{Name: "vmnet8", Flags: up, HardwareAddr: mac}, false},
		{"virtualbox", net.Interface{Name: "vboxnet0", Flags: up, HardwareAddr: mac}, false},
		{"wireless wl", net.Interface{Name: "wlp2s0", Flags: up, HardwareAddr: mac}, false},
		{"wireless keyword", net.Interface{Name: "WiFi0", Flags: up, HardwareAddr: mac}, false},
		{"down", net.Interface{Name: "eth1", Flags: net.FlagBroadcast, HardwareAddr: mac}, false},
		{"null mac", net.Interface{Name: "eth2", Flags: up, HardwareAddr: make(net.HardwareAddr, 6)}, false},
		{"no mac", net.Interface{Name: "tun0", Flags: up}, false},
	}

	f := DefaultFilter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Allow(tt.iface); got != tt.want {
				t.Errorf("Allow(%s) = %v, want %v", tt.iface.Name, got, tt.want)
			}
		})
	}
}

func TestFilterIncludeDown(t *testing.T) {
	f := DefaultFilter()
	f.IncludeDown = true
	iface := net.Interface{Name: "eth1", HardwareAddr: mustMAC(t, "02:00:00:00:00:02")}
	if !f.Allow(iface) {
		t.Error("Allow() should keep down interfaces when IncludeDown is set")
	}
}

func TestSelectSortsAndNormalizes(t *testing.T) {
	up := net.FlagUp
	ifaces := []net.Interface{
		{Index: 3, Name: "eth1", Flags: up, HardwareAddr: mustMAC(t, "02:00:00:00:00:0B")},
		{Index: 1, Name: "lo", Flags: up | net.FlagLoopback},
		{Index: 2, Name: "eth0", Flags: up, HardwareAddr: mustMAC(t, "02:00:00:00:00:0A")},
	}

	got := DefaultFilter().Select(ifaces)
	if len(got) != 2 {
		t.Fatalf("Select() = %d adapters, want 2", len(got))
	}
	if got[0].Name != "eth0" || got[1].Name != "eth1" {
		t.Errorf("order = %s, %s", got[0].Name, got[1].Name)
	}
	if got[1].HardwareAddr != "02:00:00:00:00:0b" {
		t.Errorf("HardwareAddr = %q, want lowercase", got[1].HardwareAddr)
	}
	if !got[0].Up || got[0].Index != 2 {
		t.Errorf("adapter = %+v", got[0])
	}
}

func TestByHardwareAddr(t *testing.T) {
	adapters := []Adapter{
		{Name: "eth0", HardwareAddr: "02:00:00:00:00:0a"},
		{Name: "eth1", HardwareAddr: "02:00:00:00:00:0b"},
	}

	got, err := ByHardwareAddr(adapters, "02-00-00-00-00-0B")
	if err != nil {
		t.Fatalf("ByHardwareAddr() error = %v", err)
	}
	if got.Name != "eth1" {
		t.Errorf("Name = %q, want eth1", got.Name)
	}

	if _, err := ByHardwareAddr(adapters, "02:00:00:00:00:0c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if _, err := ByHardwareAddr(adapters, "garbage"); err == nil {
		t.Error("ByHardwareAddr() should reject invalid addresses")
	}
}

func TestIsUpUnknown(t *testing.T) {
	if IsUp("scanctl-no-such-if0") {
		t.Error("IsUp() should be false for a missing interface")
	}
}
