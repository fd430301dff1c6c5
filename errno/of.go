package errno

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"os"
)

// Of maps any host error onto a guest errno. The mapping is total: nil
// yields ESUCCESS and anything unrecognized falls back to EIO, so a host
// failure can never leak out of the sandbox as something other than an
// errno.
func Of(err error) Errno {
	if err == nil {
		return ESUCCESS
	}

	// Already a guest errno, possibly wrapped.
	var e Errno
	if errors.As(err, &e) {
		return e
	}

	var dns *net.DNSError
	if errors.As(err, &dns) {
		switch {
		case dns.IsNotFound:
			return EAINONAME
		case dns.IsTimeout, dns.IsTemporary:
			return EAIAGAIN
		default:
			return EAIFAIL
		}
	}

	var addr *net.AddrError
	if errors.As(err, &addr) {
		return EINVAL
	}

	if no := fromOS(err); no != EIO {
		return no
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ENOENT
	case errors.Is(err, fs.ErrExist):
		return EEXIST
	case errors.Is(err, fs.ErrPermission):
		return EPERM
	case errors.Is(err, fs.ErrInvalid):
		return EINVAL
	case errors.Is(err, fs.ErrClosed):
		return EBADF
	case errors.Is(err, context.DeadlineExceeded):
		return ETIMEDOUT
	case errors.Is(err, context.Canceled):
		return ECANCELED
	case errors.Is(err, io.ErrUnexpectedEOF):
		return EIO
	case errors.Is(err, net.ErrClosed):
		return EBADF
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ETIMEDOUT
	}

	if te, ok := err.(interface{ Timeout() bool }); ok && te.Timeout() {
		return ETIMEDOUT
	}

	return EIO
}
