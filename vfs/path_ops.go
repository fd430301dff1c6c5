package vfs

import (
	"github.com/wippyai/wasi-core/errno"
	"github.com/wippyai/wasi-core/rights"
)

// pathDirAt resolves fd to a directory node capable of path resolution.
func (t *Table) pathDirAt(fd int32) (PathDir, error) {
	n, err := t.nodeAt(fd, 0)
	if err != nil {
		return nil, err
	}
	d, ok := n.(PathDir)
	if !ok {
		return nil, errno.ENOTDIR
	}
	return d, nil
}

// PathOpen opens path relative to the directory at dirFd and installs the
// result as a new descriptor. The new descriptor's rights are the
// requested sets narrowed by what the directory may pass on.
func (t *Table) PathOpen(dirFd int32, path string, oflags OFlags, base, inheriting rights.Rights, fdflags FdFlags) (int32, error) {
	d, err := t.pathDirAt(dirFd)
	if err != nil {
		return 0, err
	}

	if oflags.Contains(ODirectory) {
		if oflags.Contains(OCreate) || oflags.Contains(OExclusive) || oflags.Contains(OTruncate) {
			return 0, errno.EINVAL
		}
		child, err := d.OpenDir(path, base, inheriting)
		if err != nil {
			return 0, guestErr(err)
		}
		return t.InsertVFD(&InodeVFD{Node: child}), nil
	}

	// Without O_DIRECTORY the path may still name a directory; prefer the
	// directory shape when it does so fd_readdir works on the result.
	if st, serr := d.Stat(path, true); serr == nil && st.FileType == FileTypeDirectory {
		child, err := d.OpenDir(path, base, inheriting)
		if err != nil {
			return 0, guestErr(err)
		}
		return t.InsertVFD(&InodeVFD{Node: child}), nil
	}

	f, err := d.OpenFile(path, oflags, base, fdflags)
	if err != nil {
		return 0, guestErr(err)
	}
	return t.InsertVFD(&InodeVFD{Node: f}), nil
}

// PathCreateDirectory creates a directory at path below dirFd.
func (t *Table) PathCreateDirectory(dirFd int32, path string) error {
	d, err := t.pathDirAt(dirFd)
	if err != nil {
		return err
	}
	return guestErr(d.CreateDirectory(path))
}

// PathRemoveDirectory removes the empty directory at path below dirFd.
func (t *Table) PathRemoveDirectory(dirFd int32, path string) error {
	d, err := t.pathDirAt(dirFd)
	if err != nil {
		return err
	}
	return guestErr(d.RemoveDirectory(path))
}

// PathUnlinkFile removes the non-directory at path below dirFd.
func (t *Table) PathUnlinkFile(dirFd int32, path string) error {
	d, err := t.pathDirAt(dirFd)
	if err != nil {
		return err
	}
	return guestErr(d.UnlinkFile(path))
}

// PathFilestatGet reports metadata for path below dirFd.
func (t *Table) PathFilestatGet(dirFd int32, path string, followSymlinks bool) (Filestat, error) {
	d, err := t.pathDirAt(dirFd)
	if err != nil {
		return Filestat{}, err
	}
	st, err := d.Stat(path, followSymlinks)
	return st, guestErr(err)
}
