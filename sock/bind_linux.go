//go:build linux

package sock

import "golang.org/x/sys/unix"

// BindDevice pins the socket to the named network interface with
// SO_BINDTODEVICE. An empty name lifts the restriction.
func (s *Socket) BindDevice(device string) error {
	if err := unix.BindToDevice(s.h.fd, device); err != nil {
		return err
	}
	s.State.BindDevice = device
	return nil
}
