package sock

import (
	"net/netip"
	"time"

	"github.com/wippyai/wasi-core/rights"
)

// Family selects the socket's address family.
type Family uint8

const (
	Inet4 Family = iota
	Inet6
)

func (f Family) String() string {
	switch f {
	case Inet4:
		return "inet4"
	case Inet6:
		return "inet6"
	default:
		return "family(?)"
	}
}

// Type selects the socket's transport semantics.
type Type uint8

const (
	Stream Type = iota
	Datagram
)

func (t Type) String() string {
	switch t {
	case Stream:
		return "stream"
	case Datagram:
		return "datagram"
	default:
		return "type(?)"
	}
}

// ConnState tracks which of the mutually exclusive connection roles the
// socket has taken.
type ConnState uint8

const (
	ConnEmpty ConnState = iota
	ConnListening
	ConnConnected
)

// State is the guest-visible state of a socket. It is everything a
// snapshot needs to describe the socket apart from the host descriptor.
type State struct {
	Family    Family
	SockType  Type
	ConnState ConnState

	// Local and Peer are cached eagerly on bind, connect and accept so
	// address queries keep working after the host descriptor is gone.
	Local netip.AddrPort
	Peer  netip.AddrPort

	Backlog     uint32
	Nonblocking bool
	ReuseAddr   bool
	ShutRead    bool
	ShutWrite   bool

	// BindDevice is the interface name the socket is pinned to, empty when
	// unrestricted. Linux only.
	BindDevice string

	// Zero means no timeout.
	RecvTimeout time.Duration
	SendTimeout time.Duration

	RecvBufSize int
	SendBufSize int

	Rights rights.Rights
}

// Snapshot is the serialized form of State.
type Snapshot struct {
	Family      uint8  `cbor:"family" json:"family"`
	SockType    uint8  `cbor:"sock_type" json:"sock_type"`
	ConnState   uint8  `cbor:"conn_state" json:"conn_state"`
	Local       string `cbor:"local,omitempty" json:"local,omitempty"`
	Peer        string `cbor:"peer,omitempty" json:"peer,omitempty"`
	Backlog     uint32 `cbor:"backlog,omitempty" json:"backlog,omitempty"`
	Nonblocking bool   `cbor:"nonblocking,omitempty" json:"nonblocking,omitempty"`
	ReuseAddr   bool   `cbor:"reuse_addr,omitempty" json:"reuse_addr,omitempty"`
	ShutRead    bool   `cbor:"shut_read,omitempty" json:"shut_read,omitempty"`
	ShutWrite   bool   `cbor:"shut_write,omitempty" json:"shut_write,omitempty"`
	BindDevice  string `cbor:"bind_device,omitempty" json:"bind_device,omitempty"`
	RecvTimeout int64  `cbor:"recv_timeout,omitempty" json:"recv_timeout,omitempty"`
	SendTimeout int64  `cbor:"send_timeout,omitempty" json:"send_timeout,omitempty"`
	RecvBufSize int    `cbor:"recv_buf_size,omitempty" json:"recv_buf_size,omitempty"`
	SendBufSize int    `cbor:"send_buf_size,omitempty" json:"send_buf_size,omitempty"`
	Rights      uint64 `cbor:"rights" json:"rights"`
}

// Export converts s to its serialized form.
func (s State) Export() Snapshot {
	snap := Snapshot{
		Family:      uint8(s.Family),
		SockType:    uint8(s.SockType),
		ConnState:   uint8(s.ConnState),
		Backlog:     s.Backlog,
		Nonblocking: s.Nonblocking,
		ReuseAddr:   s.ReuseAddr,
		ShutRead:    s.ShutRead,
		ShutWrite:   s.ShutWrite,
		BindDevice:  s.BindDevice,
		RecvTimeout: int64(s.RecvTimeout),
		SendTimeout: int64(s.SendTimeout),
		RecvBufSize: s.RecvBufSize,
		SendBufSize: s.SendBufSize,
		Rights:      uint64(s.Rights),
	}
	if s.Local.IsValid() {
		snap.Local = s.Local.String()
	}
	if s.Peer.IsValid() {
		snap.Peer = s.Peer.String()
	}
	return snap
}

// StateOf converts a snapshot back to live state.
func StateOf(snap Snapshot) (State, error) {
	s := State{
		Family:      Family(snap.Family),
		SockType:    Type(snap.SockType),
		ConnState:   ConnState(snap.ConnState),
		Backlog:     snap.Backlog,
		Nonblocking: snap.Nonblocking,
		ReuseAddr:   snap.ReuseAddr,
		ShutRead:    snap.ShutRead,
		ShutWrite:   snap.ShutWrite,
		BindDevice:  snap.BindDevice,
		RecvTimeout: time.Duration(snap.RecvTimeout),
		SendTimeout: time.Duration(snap.SendTimeout),
		RecvBufSize: snap.RecvBufSize,
		SendBufSize: snap.SendBufSize,
		Rights:      rights.Rights(snap.Rights),
	}
	if snap.Local != "" {
		ap, err := netip.ParseAddrPort(snap.Local)
		if err != nil {
			return State{}, err
		}
		s.Local = ap
	}
	if snap.Peer != "" {
		ap, err := netip.ParseAddrPort(snap.Peer)
		if err != nil {
			return State{}, err
		}
		s.Peer = ap
	}
	return s, nil
}
