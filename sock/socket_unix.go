//go:build unix

package sock

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/wippyai/wasi-core/errno"
	"github.com/wippyai/wasi-core/rights"
)

// pollSlice is the internal wait granularity: the budget a nonblocking
// call without a timeout gets before reporting EAGAIN, and the interval at
// which blocking waits recheck their context.
const pollSlice = 20 * time.Millisecond

// handle pairs a host descriptor with its registration phase. Registration
// is a one-way transition: register consumes the pre-open handle and
// returns the poll-capable one.
type handle struct {
	fd         int
	registered bool
}

func (h handle) register() handle {
	return handle{fd: h.fd, registered: true}
}

// Socket is a guest-visible network socket backed by a raw host
// descriptor. The host descriptor is always in nonblocking mode; guest
// blocking semantics are implemented with poll waits.
//
// Socket is not safe for concurrent use.
type Socket struct {
	h handle

	// State is the guest-visible socket state; snapshots serialize it.
	State State
}

// Open creates a socket of the given family and type in the pre-open
// phase, granted the default rights for its type.
func Open(family Family, typ Type) (*Socket, error) {
	domain := unix.AF_INET
	if family == Inet6 {
		domain = unix.AF_INET6
	}
	var styp int
	var rg rights.Rights
	switch typ {
	case Stream:
		styp = unix.SOCK_STREAM
		rg = rights.StreamSocket()
	case Datagram:
		styp = unix.SOCK_DGRAM
		rg = rights.DatagramSocket()
	default:
		return nil, unix.EPROTOTYPE
	}

	fd, err := unix.Socket(domain, styp, 0)
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}

	Logger().Debug("socket opened",
		zap.Int("fd", fd),
		zap.Stringer("family", family),
		zap.Stringer("type", typ))

	return &Socket{
		h:     handle{fd: fd},
		State: State{Family: family, SockType: typ, Rights: rg},
	}, nil
}

// FromFD adopts an existing host descriptor as a registered socket with
// the given guest-visible state. It is the rehydration path for snapshot
// resume; the descriptor is switched to nonblocking mode and owned by the
// returned socket.
func FromFD(fd int, st State) (*Socket, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	unix.CloseOnExec(fd)
	return &Socket{h: handle{fd: fd, registered: true}, State: st}, nil
}

// FD exposes the host descriptor for poll integration.
func (s *Socket) FD() int { return s.h.fd }

// Registered reports whether the socket has left the pre-open phase.
func (s *Socket) Registered() bool { return s.h.registered }

// Close releases the host descriptor. The guest-visible state survives so
// address queries on a closing descriptor stay answerable.
func (s *Socket) Close() error {
	if s.h.fd < 0 {
		return nil
	}
	err := unix.Close(s.h.fd)
	s.h.fd = -1
	return err
}

// Bind assigns the local address. Stream sockets stay pre-open until
// listen or connect; datagram sockets are registered immediately since no
// later call would do it.
func (s *Socket) Bind(addr netip.AddrPort) error {
	if s.h.registered {
		return unix.EINVAL
	}
	sa, err := toSockaddr(s.State.Family, addr)
	if err != nil {
		return err
	}
	if err := unix.SetsockoptInt(s.h.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return err
	}
	s.State.ReuseAddr = true
	if err := unix.Bind(s.h.fd, sa); err != nil {
		return err
	}
	s.cacheLocal()
	if s.State.SockType == Datagram {
		s.h = s.h.register()
	}
	return nil
}

// Listen moves a bound stream socket into the listening role and registers
// it.
func (s *Socket) Listen(backlog uint32) error {
	if s.h.registered {
		return unix.EINVAL
	}
	if err := unix.Listen(s.h.fd, int(backlog)); err != nil {
		return err
	}
	s.State.Backlog = backlog
	s.State.ConnState = ConnListening
	s.h = s.h.register()
	return nil
}

// Connect initiates a connection and registers the socket. An in-progress
// connect is success for a nonblocking caller without a timeout; everyone
// else waits for writability within their budget and then surfaces the
// socket's pending error. A timed-out wait reports EAGAIN like every
// other timed operation, leaving the attempt retryable.
func (s *Socket) Connect(ctx context.Context, addr netip.AddrPort) error {
	if s.h.registered && s.State.ConnState == ConnConnected {
		return unix.EISCONN
	}
	sa, err := toSockaddr(s.State.Family, addr)
	if err != nil {
		return err
	}

	s.State.ConnState = ConnConnected
	s.State.Peer = addr

	err = unix.Connect(s.h.fd, sa)
	for errors.Is(err, unix.EINTR) {
		err = unix.Connect(s.h.fd, sa)
	}
	if err == nil {
		s.h = s.h.register()
		s.cacheLocal()
		return nil
	}
	if !errors.Is(err, unix.EINPROGRESS) && !errors.Is(err, unix.EALREADY) {
		return err
	}

	// The connection attempt is now owned by the kernel.
	s.h = s.h.register()

	if s.State.Nonblocking && s.State.SendTimeout == 0 {
		s.cacheLocal()
		return nil
	}

	if err := s.pollWait(ctx, unix.POLLOUT, s.deadline(s.State.SendTimeout)); err != nil {
		return err
	}
	if err := s.SockError(); err != nil {
		return err
	}
	s.cacheLocal()
	return nil
}

// Accept takes one pending connection off a listening socket. The child
// starts registered and connected, with its addresses cached and the
// connected-socket default rights.
func (s *Socket) Accept(ctx context.Context) (*Socket, error) {
	var child *Socket
	err := s.withPolicy(ctx, unix.POLLIN, s.State.RecvTimeout, func() error {
		nfd, sa, err := unix.Accept(s.h.fd)
		if err != nil {
			return err
		}
		unix.CloseOnExec(nfd)
		if err := unix.SetNonblock(nfd, true); err != nil {
			unix.Close(nfd)
			return err
		}
		child = &Socket{
			h: handle{fd: nfd, registered: true},
			State: State{
				Family:      s.State.Family,
				SockType:    s.State.SockType,
				ConnState:   ConnConnected,
				Nonblocking: s.State.Nonblocking,
				Rights:      rights.ConnectedSocket(),
			},
		}
		if ap, ok := fromSockaddr(sa); ok {
			child.State.Peer = ap
		}
		child.cacheLocal()
		return nil
	})
	if err != nil {
		return nil, err
	}
	Logger().Debug("connection accepted",
		zap.Int("fd", child.h.fd),
		zap.Stringer("peer", child.State.Peer))
	return child, nil
}

// RecvFlags adjust a single receive.
type RecvFlags struct {
	Peek    bool
	WaitAll bool
}

func (f RecvFlags) sys() int {
	flags := 0
	if f.Peek {
		flags |= unix.MSG_PEEK
	}
	if f.WaitAll {
		flags |= unix.MSG_WAITALL
	}
	return flags
}

// Recv reads into bufs from a connected socket. A zero count with a nil
// error means the peer shut down its write side. truncated reports a
// datagram cut short by insufficient buffer space.
func (s *Socket) Recv(ctx context.Context, bufs [][]byte, fl RecvFlags) (n int, truncated bool, err error) {
	err = s.withPolicy(ctx, unix.POLLIN, s.State.RecvTimeout, func() error {
		got, _, rflags, _, rerr := unix.RecvmsgBuffers(s.h.fd, bufs, nil, fl.sys())
		if rerr != nil {
			return rerr
		}
		n = got
		truncated = rflags&unix.MSG_TRUNC != 0
		return nil
	})
	return n, truncated, err
}

// RecvFrom reads one datagram and reports its source address.
func (s *Socket) RecvFrom(ctx context.Context, bufs [][]byte, fl RecvFlags) (n int, truncated bool, from netip.AddrPort, err error) {
	err = s.withPolicy(ctx, unix.POLLIN, s.State.RecvTimeout, func() error {
		got, _, rflags, sa, rerr := unix.RecvmsgBuffers(s.h.fd, bufs, nil, fl.sys())
		if rerr != nil {
			return rerr
		}
		n = got
		truncated = rflags&unix.MSG_TRUNC != 0
		if ap, ok := fromSockaddr(sa); ok {
			from = ap
		}
		return nil
	})
	return n, truncated, from, err
}

// Send writes bufs to a connected socket.
func (s *Socket) Send(ctx context.Context, bufs [][]byte) (n int, err error) {
	err = s.withPolicy(ctx, unix.POLLOUT, s.State.SendTimeout, func() error {
		sent, serr := unix.SendmsgBuffers(s.h.fd, bufs, nil, nil, 0)
		if serr != nil {
			return serr
		}
		n = sent
		return nil
	})
	return n, err
}

// SendTo writes one datagram to an explicit destination.
func (s *Socket) SendTo(ctx context.Context, bufs [][]byte, to netip.AddrPort) (n int, err error) {
	sa, err := toSockaddr(s.State.Family, to)
	if err != nil {
		return 0, err
	}
	err = s.withPolicy(ctx, unix.POLLOUT, s.State.SendTimeout, func() error {
		sent, serr := unix.SendmsgBuffers(s.h.fd, bufs, nil, sa, 0)
		if serr != nil {
			return serr
		}
		n = sent
		return nil
	})
	return n, err
}

// Shutdown closes the read and/or write direction of a connected socket.
func (s *Socket) Shutdown(read, write bool) error {
	if !s.h.registered {
		return unix.ENOTCONN
	}
	var how int
	switch {
	case read && write:
		how = unix.SHUT_RDWR
	case read:
		how = unix.SHUT_RD
	case write:
		how = unix.SHUT_WR
	default:
		return unix.EINVAL
	}
	if err := unix.Shutdown(s.h.fd, how); err != nil {
		return err
	}
	s.State.ShutRead = s.State.ShutRead || read
	s.State.ShutWrite = s.State.ShutWrite || write
	return nil
}

// LocalAddr returns the bound local address, preferring the live
// descriptor and falling back to the cached copy.
func (s *Socket) LocalAddr() (netip.AddrPort, error) {
	if s.h.fd >= 0 {
		if sa, err := unix.Getsockname(s.h.fd); err == nil {
			if ap, ok := fromSockaddr(sa); ok {
				s.State.Local = ap
				return ap, nil
			}
		}
	}
	if s.State.Local.IsValid() {
		return s.State.Local, nil
	}
	return netip.AddrPort{}, unix.ENOTCONN
}

// PeerAddr returns the connected remote address.
func (s *Socket) PeerAddr() (netip.AddrPort, error) {
	if s.h.fd >= 0 {
		if sa, err := unix.Getpeername(s.h.fd); err == nil {
			if ap, ok := fromSockaddr(sa); ok {
				s.State.Peer = ap
				return ap, nil
			}
		}
	}
	if s.State.Peer.IsValid() {
		return s.State.Peer, nil
	}
	return netip.AddrPort{}, unix.ENOTCONN
}

// SockError drains the socket's pending asynchronous error (SO_ERROR).
func (s *Socket) SockError() error {
	v, err := unix.GetsockoptInt(s.h.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if v != 0 {
		return unix.Errno(v)
	}
	return nil
}

func (s *Socket) cacheLocal() {
	if sa, err := unix.Getsockname(s.h.fd); err == nil {
		if ap, ok := fromSockaddr(sa); ok {
			s.State.Local = ap
		}
	}
}

// deadline resolves the per-call wait budget: the explicit timeout when
// set, one poll slice for a nonblocking socket, unbounded (zero time)
// otherwise.
func (s *Socket) deadline(timeout time.Duration) time.Time {
	if timeout > 0 {
		return time.Now().Add(timeout)
	}
	if s.State.Nonblocking {
		return time.Now().Add(pollSlice)
	}
	return time.Time{}
}

// withPolicy runs op, a nonblocking syscall attempt, under the socket's
// blocking policy: attempts that report EAGAIN wait for readiness and
// retry until the budget runs out, which surfaces as EAGAIN to the guest.
// Pre-open sockets cannot wait and fail with ENOTCONN.
func (s *Socket) withPolicy(ctx context.Context, events int16, timeout time.Duration, op func() error) error {
	if !s.h.registered {
		return unix.ENOTCONN
	}
	deadline := s.deadline(timeout)
	for {
		err := op()
		switch {
		case err == nil:
			return nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
		default:
			return err
		}
		if err := s.pollWait(ctx, events, deadline); err != nil {
			return err
		}
	}
}

// pollWait blocks until the descriptor is ready for events, the context is
// done, or the deadline passes (reported as EAGAIN). A zero deadline means
// no deadline; the context is still rechecked every poll slice.
func (s *Socket) pollWait(ctx context.Context, events int16, deadline time.Time) error {
	if !s.h.registered {
		return unix.ENOTCONN
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		slice := pollSlice
		if !deadline.IsZero() {
			remain := time.Until(deadline)
			if remain <= 0 {
				return errno.EAGAIN
			}
			if remain < slice {
				slice = remain
			}
		}
		ms := int(slice / time.Millisecond)
		if ms < 1 {
			ms = 1
		}
		fds := []unix.PollFd{{Fd: int32(s.h.fd), Events: events}}
		n, err := unix.Poll(fds, ms)
		if err != nil && !errors.Is(err, unix.EINTR) {
			return err
		}
		if n > 0 {
			// Error and hangup conditions count as ready: the retried
			// syscall reports the real failure.
			return nil
		}
	}
}
