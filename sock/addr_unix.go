//go:build unix

package sock

import (
	"net/netip"

	"golang.org/x/sys/unix"
)

func toSockaddr(family Family, ap netip.AddrPort) (unix.Sockaddr, error) {
	addr := ap.Addr()
	switch family {
	case Inet4:
		if addr.Is4In6() {
			addr = addr.Unmap()
		}
		if !addr.Is4() {
			return nil, unix.EAFNOSUPPORT
		}
		return &unix.SockaddrInet4{Port: int(ap.Port()), Addr: addr.As4()}, nil
	case Inet6:
		if !addr.Is6() && !addr.Is4() {
			return nil, unix.EAFNOSUPPORT
		}
		return &unix.SockaddrInet6{Port: int(ap.Port()), Addr: addr.As16()}, nil
	default:
		return nil, unix.EAFNOSUPPORT
	}
}

func fromSockaddr(sa unix.Sockaddr) (netip.AddrPort, bool) {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(a.Addr), uint16(a.Port)), true
	case *unix.SockaddrInet6:
		addr := netip.AddrFrom16(a.Addr)
		if addr.Is4In6() {
			addr = addr.Unmap()
		}
		return netip.AddrPortFrom(addr, uint16(a.Port)), true
	default:
		return netip.AddrPort{}, false
	}
}
