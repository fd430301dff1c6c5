//go:build unix

package vfs

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/wippyai/wasi-core/errno"
	"github.com/wippyai/wasi-core/rights"
)

func newTestTable(t *testing.T) (*Table, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	tbl, err := NewTable(Config{
		Stdin:  strings.NewReader("stdin data"),
		Stdout: &out,
		Stderr: &bytes.Buffer{},
		Preopens: []Preopen{
			{HostPath: t.TempDir(), GuestPath: "/data"},
		},
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	t.Cleanup(func() { tbl.Close() })
	return tbl, &out
}

func wantErrno(t *testing.T, err error, want errno.Errno) {
	t.Helper()
	if got := errno.Of(err); got != want {
		t.Fatalf("errno = %v, want %v", err, want)
	}
}

func TestTableSeedsStdioAndPreopens(t *testing.T) {
	tbl, out := newTestTable(t)

	if tbl.PreopenLimit() != 3 {
		t.Fatalf("PreopenLimit = %d, want 3", tbl.PreopenLimit())
	}

	buf := make([]byte, 16)
	n, err := tbl.FdRead(0, [][]byte{buf})
	if err != nil || string(buf[:n]) != "stdin data" {
		t.Fatalf("FdRead(0) = %q, %v", buf[:n], err)
	}
	if _, err := tbl.FdWrite(1, [][]byte{[]byte("hello")}); err != nil {
		t.Fatalf("FdWrite(1): %v", err)
	}
	if out.String() != "hello" {
		t.Fatalf("stdout = %q", out.String())
	}

	name, err := tbl.PrestatDirName(3)
	if err != nil || name != "/data" {
		t.Fatalf("PrestatDirName(3) = %q, %v", name, err)
	}
	if _, err := tbl.PrestatDirName(1); err == nil {
		t.Fatal("PrestatDirName(1) succeeded on stdout")
	}
	if got := tbl.Preopens(); len(got) != 1 || got[0] != 3 {
		t.Fatalf("Preopens = %v", got)
	}
}

func TestInsertAllocatesLowestIndex(t *testing.T) {
	tbl, _ := newTestTable(t)

	a := tbl.InsertVFD(&InodeVFD{Node: NewStdout(&bytes.Buffer{})})
	b := tbl.InsertVFD(&InodeVFD{Node: NewStdout(&bytes.Buffer{})})
	if a != 4 || b != 5 {
		t.Fatalf("allocated %d, %d, want 4, 5", a, b)
	}

	if err := tbl.CloseVFD(a); err != nil {
		t.Fatalf("CloseVFD: %v", err)
	}
	c := tbl.InsertVFD(&InodeVFD{Node: NewStdout(&bytes.Buffer{})})
	if c != a {
		t.Fatalf("reuse allocated %d, want %d", c, a)
	}
}

func TestStdioAndPreopensAreProtected(t *testing.T) {
	tbl, _ := newTestTable(t)

	for fd := int32(0); fd <= 3; fd++ {
		wantErrno(t, tbl.CloseVFD(fd), errno.ENOTSUP)
		_, err := tbl.RemoveVFD(fd)
		wantErrno(t, err, errno.ENOTSUP)
	}

	extra := tbl.InsertVFD(&InodeVFD{Node: NewStdout(&bytes.Buffer{})})
	wantErrno(t, tbl.RenumberVFD(extra, 2), errno.EBADF)
	wantErrno(t, tbl.RenumberVFD(2, extra), errno.EBADF)
}

func TestGetRejectsBadDescriptors(t *testing.T) {
	tbl, _ := newTestTable(t)

	_, err := tbl.GetVFD(-1)
	wantErrno(t, err, errno.EBADF)
	_, err = tbl.GetVFD(99)
	wantErrno(t, err, errno.EBADF)
}

func TestCloseIsLazyButPrompt(t *testing.T) {
	tbl, _ := newTestTable(t)

	fd := tbl.InsertVFD(&InodeVFD{Node: NewStdout(&bytes.Buffer{})})
	if err := tbl.CloseVFD(fd); err != nil {
		t.Fatalf("CloseVFD: %v", err)
	}

	// The closed descriptor is indistinguishable from an unallocated one.
	_, err := tbl.GetVFD(fd)
	wantErrno(t, err, errno.EBADF)
	_, err = tbl.GetVFD(fd)
	wantErrno(t, err, errno.EBADF)

	// And its index is available again for the very next insert.
	if got := tbl.InsertVFD(&InodeVFD{Node: NewStdout(&bytes.Buffer{})}); got != fd {
		t.Fatalf("insert after close allocated %d, want %d", got, fd)
	}
}

func TestDoubleCloseFails(t *testing.T) {
	tbl, _ := newTestTable(t)

	fd := tbl.InsertVFD(&InodeVFD{Node: NewStdout(&bytes.Buffer{})})
	if err := tbl.CloseVFD(fd); err != nil {
		t.Fatalf("CloseVFD: %v", err)
	}
	wantErrno(t, tbl.CloseVFD(fd), errno.EBADF)
}

func TestRenumberMovesPayload(t *testing.T) {
	tbl, _ := newTestTable(t)

	var sink bytes.Buffer
	from := tbl.InsertVFD(&InodeVFD{Node: NewStdout(&sink)})
	to := tbl.InsertVFD(&InodeVFD{Node: NewStdout(&bytes.Buffer{})})

	if err := tbl.RenumberVFD(from, to); err != nil {
		t.Fatalf("RenumberVFD: %v", err)
	}

	// The payload answers at its new number and the old one is gone.
	if _, err := tbl.FdWrite(to, [][]byte{[]byte("moved")}); err != nil {
		t.Fatalf("FdWrite after renumber: %v", err)
	}
	if sink.String() != "moved" {
		t.Fatalf("sink = %q", sink.String())
	}
	_, err := tbl.GetVFD(from)
	wantErrno(t, err, errno.EBADF)
}

func TestRenumberRequiresBothResolved(t *testing.T) {
	tbl, _ := newTestTable(t)

	live := tbl.InsertVFD(&InodeVFD{Node: NewStdout(&bytes.Buffer{})})

	wantErrno(t, tbl.RenumberVFD(live, live+10), errno.EBADF)
	wantErrno(t, tbl.RenumberVFD(live+10, live), errno.EBADF)
	wantErrno(t, tbl.RenumberVFD(-1, live), errno.EBADF)
	wantErrno(t, tbl.RenumberVFD(live, -1), errno.EBADF)

	// A closed target does not resolve either.
	closed := tbl.InsertVFD(&InodeVFD{Node: NewStdout(&bytes.Buffer{})})
	tbl.CloseVFD(closed)
	wantErrno(t, tbl.RenumberVFD(live, closed), errno.EBADF)
}

func TestShapeMismatches(t *testing.T) {
	tbl, _ := newTestTable(t)

	// fd_readdir on a file.
	_, err := tbl.FdReaddir(1, 0)
	wantErrno(t, err, errno.ENOTDIR)

	// fd_read on a directory.
	_, err = tbl.FdRead(3, [][]byte{make([]byte, 4)})
	wantErrno(t, err, errno.EISDIR)

	// sock_send on an inode descriptor.
	_, err = tbl.SockSend(context.Background(), 1, [][]byte{[]byte("x")})
	wantErrno(t, err, errno.ENOTSOCK)
}

func TestStdioRightsAreEnforced(t *testing.T) {
	tbl, _ := newTestTable(t)

	// stdin is read-only, stdout write-only.
	_, err := tbl.FdWrite(0, [][]byte{[]byte("x")})
	wantErrno(t, err, errno.ENOTCAPABLE)
	_, err = tbl.FdRead(1, [][]byte{make([]byte, 4)})
	wantErrno(t, err, errno.ENOTCAPABLE)
}

func TestFdstatGetNeedsNoRights(t *testing.T) {
	tbl, _ := newTestTable(t)

	st, err := tbl.FdFdstatGet(0)
	if err != nil {
		t.Fatalf("FdFdstatGet: %v", err)
	}
	if st.FileType != FileTypeCharacterDevice {
		t.Fatalf("stdin filetype = %d", st.FileType)
	}
	if !st.RightsBase.Contains(rights.FdRead) {
		t.Fatal("stdin lacks read right")
	}
}
