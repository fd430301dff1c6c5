package vfs

import (
	"errors"

	"github.com/wippyai/wasi-core/errno"
	"github.com/wippyai/wasi-core/rights"
)

// The operations in this file are the inode half of the dispatch surface:
// each resolves the descriptor, verifies its shape and rights, forwards to
// the node, and reports failures as guest errnos.

func guestErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, rights.ErrNotCapable) {
		return errno.ENOTCAPABLE
	}
	return errno.Of(err)
}

// checkRights verifies the node's current capability set covers required.
func checkRights(n Node, required rights.Rights) error {
	if required == 0 {
		return nil
	}
	st, err := n.Fdstat()
	if err != nil {
		return guestErr(err)
	}
	if err := st.RightsBase.Can(required); err != nil {
		return errno.ENOTCAPABLE
	}
	return nil
}

// nodeAt resolves fd to an inode node and checks required rights against
// its current capability set.
func (t *Table) nodeAt(fd int32, required rights.Rights) (Node, error) {
	v, err := t.GetVFD(fd)
	if err != nil {
		return nil, err
	}
	in, ok := v.(*InodeVFD)
	if !ok {
		return nil, errno.EBADF
	}
	if err := checkRights(in.Node, required); err != nil {
		return nil, err
	}
	return in.Node, nil
}

// fileAt and dirAt check shape before rights: a directory handed to a file
// operation is EISDIR even when its rights would not have covered the
// operation either.
func (t *Table) fileAt(fd int32, required rights.Rights) (File, error) {
	n, err := t.nodeAt(fd, 0)
	if err != nil {
		return nil, err
	}
	f, ok := n.(File)
	if !ok {
		return nil, errno.EISDIR
	}
	if err := checkRights(f, required); err != nil {
		return nil, err
	}
	return f, nil
}

func (t *Table) dirAt(fd int32, required rights.Rights) (Dir, error) {
	n, err := t.nodeAt(fd, 0)
	if err != nil {
		return nil, err
	}
	d, ok := n.(Dir)
	if !ok {
		return nil, errno.ENOTDIR
	}
	if err := checkRights(d, required); err != nil {
		return nil, err
	}
	return d, nil
}

// FdRead reads from the descriptor into bufs.
func (t *Table) FdRead(fd int32, bufs [][]byte) (int, error) {
	f, err := t.fileAt(fd, rights.FdRead)
	if err != nil {
		return 0, err
	}
	n, err := f.Read(bufs)
	return n, guestErr(err)
}

// FdPread reads at an explicit offset without moving the cursor.
func (t *Table) FdPread(fd int32, bufs [][]byte, offset uint64) (int, error) {
	f, err := t.fileAt(fd, rights.FdRead|rights.FdSeek)
	if err != nil {
		return 0, err
	}
	n, err := f.Pread(bufs, offset)
	return n, guestErr(err)
}

// FdWrite writes bufs to the descriptor.
func (t *Table) FdWrite(fd int32, bufs [][]byte) (int, error) {
	f, err := t.fileAt(fd, rights.FdWrite)
	if err != nil {
		return 0, err
	}
	n, err := f.Write(bufs)
	return n, guestErr(err)
}

// FdPwrite writes at an explicit offset without moving the cursor.
func (t *Table) FdPwrite(fd int32, bufs [][]byte, offset uint64) (int, error) {
	f, err := t.fileAt(fd, rights.FdWrite|rights.FdSeek)
	if err != nil {
		return 0, err
	}
	n, err := f.Pwrite(bufs, offset)
	return n, guestErr(err)
}

// FdSeek moves the descriptor's cursor and returns the new position.
func (t *Table) FdSeek(fd int32, offset int64, whence Whence) (uint64, error) {
	f, err := t.fileAt(fd, rights.FdSeek)
	if err != nil {
		return 0, err
	}
	pos, err := f.Seek(offset, whence)
	return pos, guestErr(err)
}

// FdTell reports the descriptor's cursor position.
func (t *Table) FdTell(fd int32) (uint64, error) {
	f, err := t.fileAt(fd, rights.FdTell)
	if err != nil {
		return 0, err
	}
	pos, err := f.Tell()
	return pos, guestErr(err)
}

// FdFdstatGet reports descriptor metadata. No rights are required; the
// guest must always be able to inspect what it holds.
func (t *Table) FdFdstatGet(fd int32) (Fdstat, error) {
	n, err := t.nodeAt(fd, 0)
	if err != nil {
		return Fdstat{}, err
	}
	st, err := n.Fdstat()
	return st, guestErr(err)
}

// FdFdstatSetFlags replaces the descriptor flags.
func (t *Table) FdFdstatSetFlags(fd int32, flags FdFlags) error {
	n, err := t.nodeAt(fd, rights.FdFdstatSetFlags)
	if err != nil {
		return err
	}
	return guestErr(n.SetFdFlags(flags))
}

// FdFdstatSetRights narrows the descriptor's capability sets. Requesting
// any right not currently held reports ENOTCAPABLE.
func (t *Table) FdFdstatSetRights(fd int32, base, inheriting rights.Rights) error {
	n, err := t.nodeAt(fd, 0)
	if err != nil {
		return err
	}
	return guestErr(n.SetRights(base, inheriting))
}

// FdFilestatGet reports file metadata for the descriptor.
func (t *Table) FdFilestatGet(fd int32) (Filestat, error) {
	n, err := t.nodeAt(fd, rights.FdFilestatGet)
	if err != nil {
		return Filestat{}, err
	}
	st, err := n.Filestat()
	return st, guestErr(err)
}

// FdFilestatSetSize truncates or extends the file to size.
func (t *Table) FdFilestatSetSize(fd int32, size uint64) error {
	f, err := t.fileAt(fd, rights.FdFilestatSetSize)
	if err != nil {
		return err
	}
	return guestErr(f.SetSize(size))
}

// FdFilestatSetTimes updates the file timestamps selected by flags.
func (t *Table) FdFilestatSetTimes(fd int32, atim, mtim uint64, flags FstFlags) error {
	f, err := t.fileAt(fd, rights.FdFilestatSetTimes)
	if err != nil {
		return err
	}
	return guestErr(f.SetTimes(atim, mtim, flags))
}

// FdAllocate reserves space for [offset, offset+length).
func (t *Table) FdAllocate(fd int32, offset, length uint64) error {
	f, err := t.fileAt(fd, rights.FdAllocate)
	if err != nil {
		return err
	}
	return guestErr(f.Allocate(offset, length))
}

// FdSync flushes file data and metadata.
func (t *Table) FdSync(fd int32) error {
	f, err := t.fileAt(fd, rights.FdSync)
	if err != nil {
		return err
	}
	return guestErr(f.Sync())
}

// FdDatasync flushes file data.
func (t *Table) FdDatasync(fd int32) error {
	f, err := t.fileAt(fd, rights.FdDatasync)
	if err != nil {
		return err
	}
	return guestErr(f.Datasync())
}

// FdReaddir lists directory entries starting after cookie.
func (t *Table) FdReaddir(fd int32, cookie uint64) ([]DirEntry, error) {
	d, err := t.dirAt(fd, rights.FdReaddir)
	if err != nil {
		return nil, err
	}
	entries, err := d.Readdir(cookie)
	return entries, guestErr(err)
}
