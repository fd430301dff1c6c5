package vfs

import (
	"context"
	"net/netip"
	"time"

	"github.com/wippyai/wasi-core/errno"
	"github.com/wippyai/wasi-core/rights"
	"github.com/wippyai/wasi-core/sock"
)

// socketAt resolves fd to a socket and checks required rights against its
// capability set. An inode descriptor reports ENOTSOCK.
func (t *Table) socketAt(fd int32, required rights.Rights) (*sock.Socket, error) {
	v, err := t.GetVFD(fd)
	if err != nil {
		return nil, err
	}
	s, ok := v.(*SocketVFD)
	if !ok {
		return nil, errno.ENOTSOCK
	}
	if required != 0 {
		if err := s.Socket.State.Rights.Can(required); err != nil {
			return nil, errno.ENOTCAPABLE
		}
	}
	return s.Socket, nil
}

// SockOpen creates a socket descriptor.
func (t *Table) SockOpen(family sock.Family, typ sock.Type) (int32, error) {
	s, err := sock.Open(family, typ)
	if err != nil {
		return 0, guestErr(err)
	}
	return t.InsertVFD(&SocketVFD{Socket: s}), nil
}

// SockBind assigns the socket's local address.
func (t *Table) SockBind(fd int32, addr netip.AddrPort) error {
	s, err := t.socketAt(fd, rights.SockBind)
	if err != nil {
		return err
	}
	return guestErr(s.Bind(addr))
}

// SockListen moves the socket into the listening role.
func (t *Table) SockListen(fd int32, backlog uint32) error {
	s, err := t.socketAt(fd, rights.SockBind)
	if err != nil {
		return err
	}
	return guestErr(s.Listen(backlog))
}

// SockConnect connects the socket to a remote address.
func (t *Table) SockConnect(ctx context.Context, fd int32, addr netip.AddrPort) error {
	s, err := t.socketAt(fd, 0)
	if err != nil {
		return err
	}
	return guestErr(s.Connect(ctx, addr))
}

// SockAccept takes one pending connection and installs the child as a new
// descriptor.
func (t *Table) SockAccept(ctx context.Context, fd int32) (int32, error) {
	s, err := t.socketAt(fd, 0)
	if err != nil {
		return 0, err
	}
	child, err := s.Accept(ctx)
	if err != nil {
		return 0, guestErr(err)
	}
	return t.InsertVFD(&SocketVFD{Socket: child}), nil
}

// SockRecv reads from a connected socket.
func (t *Table) SockRecv(ctx context.Context, fd int32, bufs [][]byte, fl sock.RecvFlags) (int, bool, error) {
	s, err := t.socketAt(fd, rights.SockRecv)
	if err != nil {
		return 0, false, err
	}
	n, truncated, err := s.Recv(ctx, bufs, fl)
	return n, truncated, guestErr(err)
}

// SockRecvFrom reads one datagram and its source address.
func (t *Table) SockRecvFrom(ctx context.Context, fd int32, bufs [][]byte, fl sock.RecvFlags) (int, bool, netip.AddrPort, error) {
	s, err := t.socketAt(fd, rights.SockRecvFrom)
	if err != nil {
		return 0, false, netip.AddrPort{}, err
	}
	n, truncated, from, err := s.RecvFrom(ctx, bufs, fl)
	return n, truncated, from, guestErr(err)
}

// SockSend writes to a connected socket.
func (t *Table) SockSend(ctx context.Context, fd int32, bufs [][]byte) (int, error) {
	s, err := t.socketAt(fd, rights.SockSend)
	if err != nil {
		return 0, err
	}
	n, err := s.Send(ctx, bufs)
	return n, guestErr(err)
}

// SockSendTo writes one datagram to an explicit destination.
func (t *Table) SockSendTo(ctx context.Context, fd int32, bufs [][]byte, to netip.AddrPort) (int, error) {
	s, err := t.socketAt(fd, rights.SockSendTo)
	if err != nil {
		return 0, err
	}
	n, err := s.SendTo(ctx, bufs, to)
	return n, guestErr(err)
}

// SockShutdown closes the selected directions of a connected socket.
func (t *Table) SockShutdown(fd int32, read, write bool) error {
	s, err := t.socketAt(fd, rights.SockShutdown)
	if err != nil {
		return err
	}
	return guestErr(s.Shutdown(read, write))
}

// SockLocalAddr reports the socket's bound address.
func (t *Table) SockLocalAddr(fd int32) (netip.AddrPort, error) {
	s, err := t.socketAt(fd, 0)
	if err != nil {
		return netip.AddrPort{}, err
	}
	ap, err := s.LocalAddr()
	return ap, guestErr(err)
}

// SockPeerAddr reports the socket's connected remote address.
func (t *Table) SockPeerAddr(fd int32) (netip.AddrPort, error) {
	s, err := t.socketAt(fd, 0)
	if err != nil {
		return netip.AddrPort{}, err
	}
	ap, err := s.PeerAddr()
	return ap, guestErr(err)
}

// SockSetRecvTimeout installs the socket's receive timeout, zero clearing
// it.
func (t *Table) SockSetRecvTimeout(fd int32, d time.Duration) error {
	s, err := t.socketAt(fd, 0)
	if err != nil {
		return err
	}
	s.SetRecvTimeout(d)
	return nil
}

// SockSetSendTimeout installs the socket's send timeout, zero clearing it.
func (t *Table) SockSetSendTimeout(fd int32, d time.Duration) error {
	s, err := t.socketAt(fd, 0)
	if err != nil {
		return err
	}
	s.SetSendTimeout(d)
	return nil
}

// SockSetNonblocking sets the guest-visible nonblocking flag.
func (t *Table) SockSetNonblocking(fd int32, v bool) error {
	s, err := t.socketAt(fd, 0)
	if err != nil {
		return err
	}
	s.SetNonblocking(v)
	return nil
}

// SockSetReuseAddr toggles address reuse on the socket.
func (t *Table) SockSetReuseAddr(fd int32, v bool) error {
	s, err := t.socketAt(fd, 0)
	if err != nil {
		return err
	}
	return guestErr(s.SetReuseAddr(v))
}

// SockSetRecvBufSize sets the socket's receive buffer size.
func (t *Table) SockSetRecvBufSize(fd int32, n int) error {
	s, err := t.socketAt(fd, 0)
	if err != nil {
		return err
	}
	return guestErr(s.SetRecvBufSize(n))
}

// SockSetSendBufSize sets the socket's send buffer size.
func (t *Table) SockSetSendBufSize(fd int32, n int) error {
	s, err := t.socketAt(fd, 0)
	if err != nil {
		return err
	}
	return guestErr(s.SetSendBufSize(n))
}

// SockRecvBufSize reports the socket's receive buffer size.
func (t *Table) SockRecvBufSize(fd int32) (int, error) {
	s, err := t.socketAt(fd, 0)
	if err != nil {
		return 0, err
	}
	n, err := s.RecvBufSize()
	return n, guestErr(err)
}

// SockSendBufSize reports the socket's send buffer size.
func (t *Table) SockSendBufSize(fd int32) (int, error) {
	s, err := t.socketAt(fd, 0)
	if err != nil {
		return 0, err
	}
	n, err := s.SendBufSize()
	return n, guestErr(err)
}

// SockError drains and reports the socket's pending asynchronous error as
// an errno, ESUCCESS when none is pending.
func (t *Table) SockError(fd int32) (errno.Errno, error) {
	s, err := t.socketAt(fd, 0)
	if err != nil {
		return 0, err
	}
	if serr := s.SockError(); serr != nil {
		return errno.Of(serr), nil
	}
	return errno.ESUCCESS, nil
}

// SockBindDevice pins the socket to a named network interface.
func (t *Table) SockBindDevice(fd int32, device string) error {
	s, err := t.socketAt(fd, rights.SockBind)
	if err != nil {
		return err
	}
	return guestErr(s.BindDevice(device))
}
