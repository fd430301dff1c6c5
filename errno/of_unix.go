//go:build unix

package errno

import (
	"errors"

	"golang.org/x/sys/unix"
)

// fromOS translates a wrapped OS errno. net.OpError and os.SyscallError
// both unwrap down to a unix.Errno, so one errors.As covers file and
// socket paths alike.
func fromOS(err error) Errno {
	var sys unix.Errno
	if !errors.As(err, &sys) {
		return EIO
	}
	switch sys {
	case unix.E2BIG:
		return E2BIG
	case unix.EACCES:
		return EACCES
	case unix.EADDRINUSE:
		return EADDRINUSE
	case unix.EADDRNOTAVAIL:
		return EADDRNOTAVAIL
	case unix.EAFNOSUPPORT:
		return EAFNOSUPPORT
	case unix.EAGAIN:
		return EAGAIN
	case unix.EALREADY:
		return EALREADY
	case unix.EBADF:
		return EBADF
	case unix.EBADMSG:
		return EBADMSG
	case unix.EBUSY:
		return EBUSY
	case unix.ECANCELED:
		return ECANCELED
	case unix.ECHILD:
		return ECHILD
	case unix.ECONNABORTED:
		return ECONNABORTED
	case unix.ECONNREFUSED:
		return ECONNREFUSED
	case unix.ECONNRESET:
		return ECONNRESET
	case unix.EDEADLK:
		return EDEADLK
	case unix.EDESTADDRREQ:
		return EDESTADDRREQ
	case unix.EDOM:
		return EDOM
	case unix.EDQUOT:
		return EDQUOT
	case unix.EEXIST:
		return EEXIST
	case unix.EFAULT:
		return EFAULT
	case unix.EFBIG:
		return EFBIG
	case unix.EHOSTUNREACH:
		return EHOSTUNREACH
	case unix.EIDRM:
		return EIDRM
	case unix.EILSEQ:
		return EILSEQ
	case unix.EINPROGRESS:
		return EINPROGRESS
	case unix.EINTR:
		return EINTR
	case unix.EINVAL:
		return EINVAL
	case unix.EIO:
		return EIO
	case unix.EISCONN:
		return EISCONN
	case unix.EISDIR:
		return EISDIR
	case unix.ELOOP:
		return ELOOP
	case unix.EMFILE:
		return EMFILE
	case unix.EMLINK:
		return EMLINK
	case unix.EMSGSIZE:
		return EMSGSIZE
	case unix.EMULTIHOP:
		return EMULTIHOP
	case unix.ENAMETOOLONG:
		return ENAMETOOLONG
	case unix.ENETDOWN:
		return ENETDOWN
	case unix.ENETRESET:
		return ENETRESET
	case unix.ENETUNREACH:
		return ENETUNREACH
	case unix.ENFILE:
		return ENFILE
	case unix.ENOBUFS:
		return ENOBUFS
	case unix.ENODEV:
		return ENODEV
	case unix.ENOENT:
		return ENOENT
	case unix.ENOEXEC:
		return ENOEXEC
	case unix.ENOLCK:
		return ENOLCK
	case unix.ENOLINK:
		return ENOLINK
	case unix.ENOMEM:
		return ENOMEM
	case unix.ENOMSG:
		return ENOMSG
	case unix.ENOPROTOOPT:
		return ENOPROTOOPT
	case unix.ENOSPC:
		return ENOSPC
	case unix.ENOSYS:
		return ENOSYS
	case unix.ENOTCONN:
		return ENOTCONN
	case unix.ENOTDIR:
		return ENOTDIR
	case unix.ENOTEMPTY:
		return ENOTEMPTY
	case unix.ENOTRECOVERABLE:
		return ENOTRECOVERABLE
	case unix.ENOTSOCK:
		return ENOTSOCK
	case unix.ENOTSUP:
		return ENOTSUP
	case unix.ENOTTY:
		return ENOTTY
	case unix.ENXIO:
		return ENXIO
	case unix.EOVERFLOW:
		return EOVERFLOW
	case unix.EOWNERDEAD:
		return EOWNERDEAD
	case unix.EPERM:
		return EPERM
	case unix.EPIPE:
		return EPIPE
	case unix.EPROTO:
		return EPROTO
	case unix.EPROTONOSUPPORT:
		return EPROTONOSUPPORT
	case unix.EPROTOTYPE:
		return EPROTOTYPE
	case unix.ERANGE:
		return ERANGE
	case unix.EROFS:
		return EROFS
	case unix.ESPIPE:
		return ESPIPE
	case unix.ESRCH:
		return ESRCH
	case unix.ESTALE:
		return ESTALE
	case unix.ETIMEDOUT:
		return ETIMEDOUT
	case unix.ETXTBSY:
		return ETXTBSY
	case unix.EXDEV:
		return EXDEV
	default:
		return EIO
	}
}
