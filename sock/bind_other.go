//go:build unix && !linux

package sock

import "github.com/wippyai/wasi-core/errno"

// BindDevice requires SO_BINDTODEVICE, which only Linux provides.
func (s *Socket) BindDevice(device string) error {
	return errno.ENOTSUP
}
