//go:build unix

package errno

import (
	"errors"
	"fmt"
	"net"
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

func TestNumericValues(t *testing.T) {
	// Wire values: these are written into guest memory.
	cases := []struct {
		e    Errno
		want uint16
	}{
		{ESUCCESS, 0},
		{E2BIG, 1},
		{EAGAIN, 6},
		{EBADF, 8},
		{EEXIST, 20},
		{EINVAL, 28},
		{ENOENT, 44},
		{ENOTDIR, 54},
		{ENOTSUP, 58},
		{EPERM, 63},
		{ESPIPE, 70},
		{ETIMEDOUT, 73},
		{EXDEV, 75},
		{ENOTCAPABLE, 76},
		{EAIADDRFAMILY, 77},
		{EAISYSTEM, 87},
	}
	for _, c := range cases {
		if c.e.Raw() != c.want {
			t.Errorf("%s = %d, want %d", c.e, c.e.Raw(), c.want)
		}
	}
}

func TestErrorStrings(t *testing.T) {
	if got := EBADF.Error(); got != "EBADF" {
		t.Errorf("EBADF.Error() = %q", got)
	}
	if got := Errno(9999).Error(); got != "errno(9999)" {
		t.Errorf("unknown errno string = %q", got)
	}
}

func TestOfNil(t *testing.T) {
	if got := Of(nil); got != ESUCCESS {
		t.Fatalf("Of(nil) = %v", got)
	}
}

func TestOfPassesThroughErrno(t *testing.T) {
	if got := Of(EBADF); got != EBADF {
		t.Fatalf("Of(EBADF) = %v", got)
	}
	wrapped := fmt.Errorf("fd lookup: %w", ENOTCAPABLE)
	if got := Of(wrapped); got != ENOTCAPABLE {
		t.Fatalf("Of(wrapped) = %v", got)
	}
}

func TestOfSyscallErrno(t *testing.T) {
	cases := []struct {
		in   error
		want Errno
	}{
		{unix.ENOENT, ENOENT},
		{unix.EAGAIN, EAGAIN},
		{unix.ECONNREFUSED, ECONNREFUSED},
		{unix.EINPROGRESS, EINPROGRESS},
		{unix.EPIPE, EPIPE},
	}
	for _, c := range cases {
		if got := Of(c.in); got != c.want {
			t.Errorf("Of(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestOfWrappedOSError(t *testing.T) {
	// The shapes os and net actually produce.
	err := &os.PathError{Op: "open", Path: "/nope", Err: unix.ENOENT}
	if got := Of(err); got != ENOENT {
		t.Fatalf("Of(PathError) = %v", got)
	}
	nerr := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: os.NewSyscallError("connect", unix.ECONNREFUSED),
	}
	if got := Of(nerr); got != ECONNREFUSED {
		t.Fatalf("Of(OpError) = %v", got)
	}
}

func TestOfSentinels(t *testing.T) {
	if got := Of(os.ErrNotExist); got != ENOENT {
		t.Fatalf("Of(ErrNotExist) = %v", got)
	}
	if got := Of(os.ErrPermission); got != EPERM {
		t.Fatalf("Of(ErrPermission) = %v", got)
	}
	if got := Of(net.ErrClosed); got != EBADF {
		t.Fatalf("Of(net.ErrClosed) = %v", got)
	}
}

func TestOfDNSError(t *testing.T) {
	if got := Of(&net.DNSError{IsNotFound: true}); got != EAINONAME {
		t.Fatalf("not-found lookup = %v", got)
	}
	if got := Of(&net.DNSError{IsTemporary: true}); got != EAIAGAIN {
		t.Fatalf("temporary lookup = %v", got)
	}
	if got := Of(&net.DNSError{}); got != EAIFAIL {
		t.Fatalf("failed lookup = %v", got)
	}
}

func TestOfUnknownFallsBackToEIO(t *testing.T) {
	if got := Of(errors.New("mystery")); got != EIO {
		t.Fatalf("Of(unknown) = %v", got)
	}
}
