//go:build unix

package sock

import (
	"time"

	"golang.org/x/sys/unix"
)

// SetNonblocking sets the guest-visible nonblocking flag. The host
// descriptor is always nonblocking; only the wait policy changes.
func (s *Socket) SetNonblocking(v bool) {
	s.State.Nonblocking = v
}

// SetRecvTimeout installs a receive timeout. Zero clears it. Installing a
// timeout also marks the socket nonblocking, matching the guest-visible
// contract that timed sockets never park a thread indefinitely.
func (s *Socket) SetRecvTimeout(d time.Duration) {
	s.State.RecvTimeout = d
	if d > 0 {
		s.State.Nonblocking = true
	}
}

// SetSendTimeout installs a send timeout. Zero clears it. Like
// SetRecvTimeout it marks the socket nonblocking.
func (s *Socket) SetSendTimeout(d time.Duration) {
	s.State.SendTimeout = d
	if d > 0 {
		s.State.Nonblocking = true
	}
}

// SetReuseAddr toggles SO_REUSEADDR on the host descriptor.
func (s *Socket) SetReuseAddr(v bool) error {
	flag := 0
	if v {
		flag = 1
	}
	if err := unix.SetsockoptInt(s.h.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, flag); err != nil {
		return err
	}
	s.State.ReuseAddr = v
	return nil
}

// SetRecvBufSize sets SO_RCVBUF on the host descriptor.
func (s *Socket) SetRecvBufSize(n int) error {
	if err := unix.SetsockoptInt(s.h.fd, unix.SOL_SOCKET, unix.SO_RCVBUF, n); err != nil {
		return err
	}
	s.State.RecvBufSize = n
	return nil
}

// SetSendBufSize sets SO_SNDBUF on the host descriptor.
func (s *Socket) SetSendBufSize(n int) error {
	if err := unix.SetsockoptInt(s.h.fd, unix.SOL_SOCKET, unix.SO_SNDBUF, n); err != nil {
		return err
	}
	s.State.SendBufSize = n
	return nil
}

// RecvBufSize reads SO_RCVBUF from the host descriptor, falling back to
// the cached value when the descriptor is gone.
func (s *Socket) RecvBufSize() (int, error) {
	if s.h.fd < 0 {
		return s.State.RecvBufSize, nil
	}
	return unix.GetsockoptInt(s.h.fd, unix.SOL_SOCKET, unix.SO_RCVBUF)
}

// SendBufSize reads SO_SNDBUF from the host descriptor, falling back to
// the cached value when the descriptor is gone.
func (s *Socket) SendBufSize() (int, error) {
	if s.h.fd < 0 {
		return s.State.SendBufSize, nil
	}
	return unix.GetsockoptInt(s.h.fd, unix.SOL_SOCKET, unix.SO_SNDBUF)
}

// Export serializes the guest-visible state.
func (s *Socket) Export() Snapshot {
	return s.State.Export()
}
