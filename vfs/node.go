package vfs

import (
	"io"

	"github.com/wippyai/wasi-core/errno"
	"github.com/wippyai/wasi-core/rights"
)

// Node is the common surface of everything an inode descriptor can point
// at. Implementations return errno values for guest-visible failures and
// wrapped host errors otherwise; the table maps both before anything
// reaches the dispatch layer.
type Node interface {
	Fdstat() (Fdstat, error)
	Filestat() (Filestat, error)
	SetFdFlags(FdFlags) error

	// SetRights replaces the capability sets. Implementations reject any
	// set that is not a subset of the current one.
	SetRights(base, inheriting rights.Rights) error

	Close() error
}

// File is a node supporting byte IO.
type File interface {
	Node

	Read(bufs [][]byte) (int, error)
	Pread(bufs [][]byte, offset uint64) (int, error)
	Write(bufs [][]byte) (int, error)
	Pwrite(bufs [][]byte, offset uint64) (int, error)
	Seek(offset int64, whence Whence) (uint64, error)
	Tell() (uint64, error)
	Allocate(offset, length uint64) error
	SetSize(size uint64) error
	SetTimes(atim, mtim uint64, flags FstFlags) error
	Sync() error
	Datasync() error
}

// Dir is a node supporting directory enumeration.
type Dir interface {
	Node

	// Readdir lists entries starting after cookie, which is 0 for the
	// beginning or the Next field of a previously returned entry.
	Readdir(cookie uint64) ([]DirEntry, error)
}

// PathDir is a directory that resolves guest paths against a host tree.
// All methods confine resolution to the directory's own subtree.
type PathDir interface {
	Dir

	OpenFile(path string, oflags OFlags, base rights.Rights, fdflags FdFlags) (File, error)
	OpenDir(path string, base, inheriting rights.Rights) (PathDir, error)
	CreateDirectory(path string) error
	RemoveDirectory(path string) error
	UnlinkFile(path string) error
	Stat(path string, followSymlinks bool) (Filestat, error)
}

// nodeDefaults rejects every state mutation; the stdio nodes embed it.
type nodeDefaults struct{}

func (nodeDefaults) SetFdFlags(FdFlags) error               { return errno.EBADF }
func (nodeDefaults) SetRights(_, _ rights.Rights) error     { return errno.EBADF }
func (nodeDefaults) SetSize(uint64) error                   { return errno.EBADF }
func (nodeDefaults) SetTimes(_, _ uint64, _ FstFlags) error { return errno.EBADF }
func (nodeDefaults) Allocate(_, _ uint64) error             { return errno.EBADF }
func (nodeDefaults) Seek(_ int64, _ Whence) (uint64, error) { return 0, errno.ESPIPE }
func (nodeDefaults) Tell() (uint64, error)                  { return 0, errno.ESPIPE }
func (nodeDefaults) Filestat() (Filestat, error) {
	return Filestat{FileType: FileTypeCharacterDevice}, nil
}

// stdinNode adapts an arbitrary reader into the guest's descriptor 0.
type stdinNode struct {
	nodeDefaults
	r io.Reader
}

// NewStdin wraps r as the stdin node. A nil reader yields a permanently
// empty stdin.
func NewStdin(r io.Reader) File {
	return &stdinNode{r: r}
}

func (s *stdinNode) Fdstat() (Fdstat, error) {
	return Fdstat{
		FileType:   FileTypeCharacterDevice,
		RightsBase: rights.FdRead | rights.PollFdReadwrite,
	}, nil
}

func (s *stdinNode) Read(bufs [][]byte) (int, error) {
	if s.r == nil {
		return 0, nil
	}
	total := 0
	for _, buf := range bufs {
		if len(buf) == 0 {
			continue
		}
		n, err := s.r.Read(buf)
		total += n
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		if n < len(buf) {
			break
		}
	}
	return total, nil
}

func (s *stdinNode) Pread([][]byte, uint64) (int, error)  { return 0, errno.ESPIPE }
func (s *stdinNode) Write([][]byte) (int, error)          { return 0, errno.EBADF }
func (s *stdinNode) Pwrite([][]byte, uint64) (int, error) { return 0, errno.EBADF }
func (s *stdinNode) Sync() error                          { return nil }
func (s *stdinNode) Datasync() error                      { return nil }
func (s *stdinNode) Close() error                         { return nil }

// stdoutNode adapts an arbitrary writer into descriptors 1 and 2.
type stdoutNode struct {
	nodeDefaults
	w io.Writer
}

// NewStdout wraps w as the stdout or stderr node. A nil writer discards.
func NewStdout(w io.Writer) File {
	return &stdoutNode{w: w}
}

func (s *stdoutNode) Fdstat() (Fdstat, error) {
	return Fdstat{
		FileType:   FileTypeCharacterDevice,
		RightsBase: rights.FdWrite | rights.PollFdReadwrite,
	}, nil
}

func (s *stdoutNode) Write(bufs [][]byte) (int, error) {
	total := 0
	for _, buf := range bufs {
		if len(buf) == 0 {
			continue
		}
		if s.w == nil {
			total += len(buf)
			continue
		}
		n, err := s.w.Write(buf)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *stdoutNode) Read([][]byte) (int, error)           { return 0, errno.EBADF }
func (s *stdoutNode) Pread([][]byte, uint64) (int, error)  { return 0, errno.EBADF }
func (s *stdoutNode) Pwrite([][]byte, uint64) (int, error) { return 0, errno.EBADF }

func (s *stdoutNode) Sync() error {
	if f, ok := s.w.(interface{ Sync() error }); ok {
		return f.Sync()
	}
	return nil
}

func (s *stdoutNode) Datasync() error { return s.Sync() }
func (s *stdoutNode) Close() error    { return nil }
