//go:build unix

package vfs

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/wippyai/wasi-core/errno"
	"github.com/wippyai/wasi-core/rights"
)

// DiskFile is a regular file on the host filesystem.
type DiskFile struct {
	f        *os.File
	hostPath string
	flags    FdFlags

	base       rights.Rights
	inheriting rights.Rights
}

func (d *DiskFile) Fdstat() (Fdstat, error) {
	return Fdstat{
		FileType:         FileTypeRegularFile,
		Flags:            d.flags,
		RightsBase:       d.base,
		RightsInheriting: d.inheriting,
	}, nil
}

func (d *DiskFile) Filestat() (Filestat, error) {
	fi, err := d.f.Stat()
	if err != nil {
		return Filestat{}, err
	}
	return filestatOf(fi, FileTypeRegularFile), nil
}

func (d *DiskFile) SetFdFlags(flags FdFlags) error {
	if flags.Intersects(FdDsync | FdRsync | FdSyncFlag) {
		return errno.ENOSYS
	}
	d.flags = flags
	return nil
}

func (d *DiskFile) SetRights(base, inheriting rights.Rights) error {
	if !d.base.Contains(base) || !d.inheriting.Contains(inheriting) {
		return errno.ENOTCAPABLE
	}
	d.base = base
	d.inheriting = inheriting
	return nil
}

func (d *DiskFile) Read(bufs [][]byte) (int, error) {
	total := 0
	for _, buf := range bufs {
		if len(buf) == 0 {
			continue
		}
		n, err := d.f.Read(buf)
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

func (d *DiskFile) Pread(bufs [][]byte, offset uint64) (int, error) {
	total := 0
	off := int64(offset)
	for _, buf := range bufs {
		if len(buf) == 0 {
			continue
		}
		n, err := d.f.ReadAt(buf, off)
		total += n
		off += int64(n)
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (d *DiskFile) Write(bufs [][]byte) (int, error) {
	total := 0
	for _, buf := range bufs {
		if len(buf) == 0 {
			continue
		}
		n, err := d.f.Write(buf)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (d *DiskFile) Pwrite(bufs [][]byte, offset uint64) (int, error) {
	total := 0
	off := int64(offset)
	for _, buf := range bufs {
		if len(buf) == 0 {
			continue
		}
		n, err := d.f.WriteAt(buf, off)
		total += n
		off += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (d *DiskFile) Seek(offset int64, whence Whence) (uint64, error) {
	var w int
	switch whence {
	case WhenceSet:
		w = io.SeekStart
	case WhenceCur:
		w = io.SeekCurrent
	case WhenceEnd:
		w = io.SeekEnd
	default:
		return 0, errno.EINVAL
	}
	pos, err := d.f.Seek(offset, w)
	if err != nil {
		return 0, err
	}
	return uint64(pos), nil
}

func (d *DiskFile) Tell() (uint64, error) {
	pos, err := d.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	return uint64(pos), nil
}

// Allocate ensures the file covers [offset, offset+length). Space past the
// current size is provided by extending.
func (d *DiskFile) Allocate(offset, length uint64) error {
	fi, err := d.f.Stat()
	if err != nil {
		return err
	}
	want := int64(offset + length)
	if want > fi.Size() {
		return d.f.Truncate(want)
	}
	return nil
}

func (d *DiskFile) SetSize(size uint64) error {
	return d.f.Truncate(int64(size))
}

func (d *DiskFile) SetTimes(atim, mtim uint64, flags FstFlags) error {
	at, err := timespecArg(atim, flags.Contains(FstAtim), flags.Contains(FstAtimNow))
	if err != nil {
		return err
	}
	mt, err := timespecArg(mtim, flags.Contains(FstMtim), flags.Contains(FstMtimNow))
	if err != nil {
		return err
	}
	if at.IsZero() && mt.IsZero() {
		return nil
	}
	// os.Chtimes treats a zero time as "leave unchanged".
	return os.Chtimes(d.hostPath, at, mt)
}

func (d *DiskFile) Sync() error     { return d.f.Sync() }
func (d *DiskFile) Datasync() error { return d.f.Sync() }
func (d *DiskFile) Close() error    { return d.f.Close() }

func timespecArg(ts uint64, set, now bool) (time.Time, error) {
	switch {
	case set && now:
		return time.Time{}, errno.EINVAL
	case set:
		return time.Unix(0, int64(ts)), nil
	case now:
		return time.Now(), nil
	default:
		return time.Time{}, nil
	}
}

// DiskDir is a directory on the host filesystem. dirRights govern
// operations on the directory itself; fileRights bound what files opened
// through it may receive.
type DiskDir struct {
	f        *os.File
	hostPath string
	flags    FdFlags

	dirRights  rights.Rights
	fileRights rights.Rights
}

func (d *DiskDir) Fdstat() (Fdstat, error) {
	return Fdstat{
		FileType:         FileTypeDirectory,
		Flags:            d.flags,
		RightsBase:       d.dirRights,
		RightsInheriting: d.fileRights,
	}, nil
}

func (d *DiskDir) Filestat() (Filestat, error) {
	fi, err := os.Stat(d.hostPath)
	if err != nil {
		return Filestat{}, err
	}
	return filestatOf(fi, FileTypeDirectory), nil
}

func (d *DiskDir) SetFdFlags(flags FdFlags) error {
	if flags.Intersects(FdDsync | FdRsync | FdSyncFlag) {
		return errno.ENOSYS
	}
	d.flags = flags
	return nil
}

func (d *DiskDir) SetRights(base, inheriting rights.Rights) error {
	if !d.dirRights.Contains(base) || !d.fileRights.Contains(inheriting) {
		return errno.ENOTCAPABLE
	}
	d.dirRights = base
	d.fileRights = inheriting
	return nil
}

func (d *DiskDir) Close() error {
	if d.f == nil {
		return nil
	}
	return d.f.Close()
}

// Readdir lists entries in name order starting after cookie. The listing
// is re-read from the host on every call so a growing directory stays
// enumerable.
func (d *DiskDir) Readdir(cookie uint64) ([]DirEntry, error) {
	if err := d.dirRights.Can(rights.FdReaddir); err != nil {
		return nil, err
	}
	names, err := os.ReadDir(d.hostPath)
	if err != nil {
		return nil, err
	}
	if cookie > uint64(len(names)) {
		return nil, errno.EINVAL
	}
	out := make([]DirEntry, 0, uint64(len(names))-cookie)
	for i := int(cookie); i < len(names); i++ {
		de := names[i]
		entry := DirEntry{
			Next: uint64(i) + 1,
			Type: FileTypeRegularFile,
			Name: de.Name(),
		}
		if de.IsDir() {
			entry.Type = FileTypeDirectory
		} else if de.Type()&fs.ModeSymlink != 0 {
			entry.Type = FileTypeSymbolicLink
		}
		if info, err := de.Info(); err == nil {
			if st, ok := info.Sys().(*syscall.Stat_t); ok {
				entry.Ino = st.Ino
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// resolve confines a guest path to the directory's subtree.
func (d *DiskDir) resolve(sub string) (string, error) {
	joined := filepath.Join(d.hostPath, sub)
	rel, err := filepath.Rel(d.hostPath, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errno.ENOENT
	}
	return joined, nil
}

// OpenFile opens or creates a regular file below the directory. The new
// file's rights are the requested base narrowed by the directory's
// inheritable set.
func (d *DiskDir) OpenFile(path string, oflags OFlags, base rights.Rights, fdflags FdFlags) (File, error) {
	required := rights.PathOpen
	if oflags.Contains(OCreate) {
		required |= rights.PathCreateFile
	}
	if err := d.dirRights.Can(required); err != nil {
		return nil, err
	}
	host, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	if fdflags.Intersects(FdDsync | FdRsync | FdSyncFlag) {
		return nil, errno.ENOSYS
	}

	base = base.Intersect(d.fileRights)
	read := base.Contains(rights.FdRead)
	write := base.Contains(rights.FdWrite) ||
		base.Contains(rights.FdAllocate) ||
		base.Contains(rights.FdFilestatSetSize)

	var mode int
	switch {
	case read && write:
		mode = os.O_RDWR
	case write:
		mode = os.O_WRONLY
	default:
		mode = os.O_RDONLY
	}
	if oflags.Contains(OCreate) {
		mode |= os.O_CREATE
		if mode&(os.O_WRONLY|os.O_RDWR) == 0 {
			// Creation implies writability on the host even when the
			// guest rights end up read-only.
			mode |= os.O_RDWR
		}
	}
	if oflags.Contains(OExclusive) {
		mode |= os.O_EXCL
	}
	if oflags.Contains(OTruncate) {
		mode |= os.O_TRUNC
	}
	if fdflags.Contains(FdAppend) {
		mode |= os.O_APPEND
	}

	f, err := os.OpenFile(host, mode, 0o644)
	if err != nil {
		return nil, err
	}
	return &DiskFile{f: f, hostPath: host, flags: fdflags, base: base}, nil
}

// OpenDir opens an existing directory below the directory. Rights narrow:
// the child holds the intersection of the parent's sets with the requested
// ones.
func (d *DiskDir) OpenDir(path string, base, inheriting rights.Rights) (PathDir, error) {
	if err := d.dirRights.Can(rights.PathOpen); err != nil {
		return nil, err
	}
	host, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(host)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, errno.ENOTDIR
	}
	return &DiskDir{
		hostPath:   host,
		dirRights:  d.dirRights.Intersect(base),
		fileRights: d.fileRights.Intersect(inheriting),
	}, nil
}

func (d *DiskDir) CreateDirectory(path string) error {
	if err := d.dirRights.Can(rights.PathCreateDirectory); err != nil {
		return err
	}
	host, err := d.resolve(path)
	if err != nil {
		return err
	}
	return os.MkdirAll(host, 0o755)
}

func (d *DiskDir) RemoveDirectory(path string) error {
	if err := d.dirRights.Can(rights.PathRemoveDirectory); err != nil {
		return err
	}
	host, err := d.resolve(path)
	if err != nil {
		return err
	}
	return os.Remove(host)
}

func (d *DiskDir) UnlinkFile(path string) error {
	if err := d.dirRights.Can(rights.PathUnlinkFile); err != nil {
		return err
	}
	host, err := d.resolve(path)
	if err != nil {
		return err
	}
	fi, err := os.Lstat(host)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return errno.EISDIR
	}
	return os.Remove(host)
}

func (d *DiskDir) Stat(path string, followSymlinks bool) (Filestat, error) {
	if err := d.dirRights.Can(rights.PathFilestatGet); err != nil {
		return Filestat{}, err
	}
	host, err := d.resolve(path)
	if err != nil {
		return Filestat{}, err
	}
	var fi fs.FileInfo
	if followSymlinks {
		fi, err = os.Stat(host)
	} else {
		fi, err = os.Lstat(host)
	}
	if err != nil {
		return Filestat{}, err
	}
	ft := FileTypeRegularFile
	switch {
	case fi.Mode()&fs.ModeSymlink != 0:
		ft = FileTypeSymbolicLink
	case fi.IsDir():
		ft = FileTypeDirectory
	}
	return filestatOf(fi, ft), nil
}

// PreOpenDir is a directory granted to the guest at startup. It is a
// DiskDir that additionally remembers the guest-visible mount path
// reported by prestat.
type PreOpenDir struct {
	DiskDir
	guestPath string
}

// NewPreOpenDir opens hostPath with the full directory and file rights and
// mounts it at guestPath.
func NewPreOpenDir(hostPath, guestPath string) (*PreOpenDir, error) {
	fi, err := os.Stat(hostPath)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, errno.ENOTDIR
	}
	return &PreOpenDir{
		DiskDir: DiskDir{
			hostPath:   hostPath,
			dirRights:  rights.DirAll(),
			fileRights: rights.FdAll(),
		},
		guestPath: guestPath,
	}, nil
}

// GuestPath is the mount path reported to the guest via prestat.
func (p *PreOpenDir) GuestPath() string { return p.guestPath }

func filestatOf(fi fs.FileInfo, ft FileType) Filestat {
	st := Filestat{
		FileType: ft,
		Size:     uint64(fi.Size()),
		Mtim:     uint64(fi.ModTime().UnixNano()),
	}
	if sys, ok := fi.Sys().(*syscall.Stat_t); ok {
		st.Ino = sys.Ino
		st.Nlink = uint64(sys.Nlink)
	}
	return st
}
