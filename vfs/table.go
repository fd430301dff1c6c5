package vfs

import (
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/wasi-core/errno"
	"github.com/wippyai/wasi-core/pool"
)

// Preopen names one host directory granted to the guest at startup.
type Preopen struct {
	HostPath  string
	GuestPath string
}

// Config assembles a fresh descriptor table. Nil stdio streams default to
// the host process streams.
type Config struct {
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	Preopens []Preopen
}

// Table is the guest-visible descriptor table. Descriptors 0 through 2 are
// stdio and the following len(Preopens) descriptors are pre-opened
// directories; none of those may be removed or renumbered. All remaining
// indices are allocated lowest-first by the slot pool.
//
// A closed descriptor's slot is reclaimed lazily: close marks the slot and
// the next table call erases it, so the index becomes reusable no later
// than one call after the close.
//
// Table is not safe for concurrent use.
type Table struct {
	pool         *pool.Pool[VFD]
	preopenLimit int32

	// pending is the index of a marked-closed slot awaiting erasure, -1
	// when none.
	pending int32
}

// NewTable builds a table with stdio and the configured pre-opened
// directories installed.
func NewTable(cfg Config) (*Table, error) {
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}

	t := &Table{pool: pool.New[VFD](), pending: -1}
	t.mustInsert(&InodeVFD{Node: NewStdin(cfg.Stdin)}, 0)
	t.mustInsert(&InodeVFD{Node: NewStdout(cfg.Stdout)}, 1)
	t.mustInsert(&InodeVFD{Node: NewStdout(cfg.Stderr)}, 2)

	for i, p := range cfg.Preopens {
		d, err := NewPreOpenDir(p.HostPath, p.GuestPath)
		if err != nil {
			return nil, err
		}
		t.mustInsert(&InodeVFD{Node: d}, 3+int32(i))
		Logger().Debug("directory pre-opened",
			zap.Int32("fd", 3+int32(i)),
			zap.String("host_path", p.HostPath),
			zap.String("guest_path", p.GuestPath))
	}
	t.preopenLimit = 2 + int32(len(cfg.Preopens))
	return t, nil
}

func (t *Table) mustInsert(v VFD, want int32) {
	idx, replaced := t.pool.Push(v)
	if replaced != nil || int32(idx) != want {
		panic("vfs: descriptor table seeded out of order")
	}
}

// PreopenLimit is the highest protected descriptor index. Descriptors at
// or below it cannot be closed, removed, or renumbered.
func (t *Table) PreopenLimit() int32 {
	return t.preopenLimit
}

// reap erases the slot a previous close marked, if any.
func (t *Table) reap() {
	if t.pending >= 0 {
		t.pool.Remove(int(t.pending))
		t.pending = -1
	}
}

// ref resolves fd to its live slot. Closed-marked slots report EBADF and
// are recorded for erasure on the next call.
func (t *Table) ref(fd int32) (*VFD, error) {
	if fd < 0 {
		return nil, errno.EBADF
	}
	p := t.pool.Get(int(fd))
	if p == nil {
		return nil, errno.EBADF
	}
	if _, isClosed := (*p).(closedVFD); isClosed {
		t.pending = fd
		return nil, errno.EBADF
	}
	return p, nil
}

// InsertVFD adds a payload at the lowest free index and returns the new
// descriptor. It never fails.
func (t *Table) InsertVFD(v VFD) int32 {
	t.reap()
	idx, replaced := t.pool.Push(v)
	if replaced != nil {
		panic("vfs: descriptor pool displaced a live entry")
	}
	return int32(idx)
}

// GetVFD resolves a descriptor to its payload.
func (t *Table) GetVFD(fd int32) (VFD, error) {
	t.reap()
	p, err := t.ref(fd)
	if err != nil {
		return nil, err
	}
	return *p, nil
}

// CloseVFD releases the descriptor's host resource and marks its slot for
// lazy erasure. Stdio and pre-opened descriptors report ENOTSUP.
func (t *Table) CloseVFD(fd int32) error {
	t.reap()
	if fd >= 0 && fd <= t.preopenLimit {
		return errno.ENOTSUP
	}
	p, err := t.ref(fd)
	if err != nil {
		return err
	}
	if cerr := releaseVFD(*p); cerr != nil {
		Logger().Warn("descriptor close failed",
			zap.Int32("fd", fd),
			zap.Error(cerr))
	}
	*p = closedVFD{}
	t.pending = fd
	return nil
}

// RemoveVFD erases the descriptor immediately and returns its payload,
// without releasing the underlying host resource. Stdio and pre-opened
// descriptors report ENOTSUP.
func (t *Table) RemoveVFD(fd int32) (VFD, error) {
	t.reap()
	if fd >= 0 && fd <= t.preopenLimit {
		return nil, errno.ENOTSUP
	}
	if _, err := t.ref(fd); err != nil {
		return nil, err
	}
	v, _ := t.pool.Remove(int(fd))
	return v, nil
}

// RenumberVFD moves from's payload to the index to, releasing whatever to
// held, and frees from. Both descriptors must resolve and both must be
// outside the protected range.
func (t *Table) RenumberVFD(from, to int32) error {
	t.reap()
	if from < 0 || to < 0 {
		return errno.EBADF
	}
	if from <= t.preopenLimit || to <= t.preopenLimit {
		return errno.EBADF
	}
	toRef, err := t.ref(to)
	if err != nil {
		return err
	}
	fromRef, err := t.ref(from)
	if err != nil {
		return err
	}
	if from == to {
		return nil
	}
	if cerr := releaseVFD(*toRef); cerr != nil {
		Logger().Warn("descriptor close failed during renumber",
			zap.Int32("fd", to),
			zap.Error(cerr))
	}
	*toRef = *fromRef
	t.pool.Remove(int(from))
	return nil
}

// Preopens lists the pre-opened directory descriptors with their guest
// mount paths, in descriptor order.
func (t *Table) Preopens() []int32 {
	out := make([]int32, 0, t.preopenLimit-2)
	for fd := int32(3); fd <= t.preopenLimit; fd++ {
		out = append(out, fd)
	}
	return out
}

// PrestatDirName reports the guest mount path of a pre-opened directory
// descriptor.
func (t *Table) PrestatDirName(fd int32) (string, error) {
	t.reap()
	if fd < 3 || fd > t.preopenLimit {
		return "", errno.EBADF
	}
	p, err := t.ref(fd)
	if err != nil {
		return "", err
	}
	in, ok := (*p).(*InodeVFD)
	if !ok {
		return "", errno.EBADF
	}
	pre, ok := in.Node.(*PreOpenDir)
	if !ok {
		return "", errno.EBADF
	}
	return pre.GuestPath(), nil
}

// Cleanup releases trailing free capacity in the slot pool.
func (t *Table) Cleanup() {
	t.reap()
	t.pool.CleanupStores()
}

// Close releases every live descriptor.
func (t *Table) Close() error {
	t.reap()
	var firstErr error
	t.pool.Each(func(_ int, v *VFD) bool {
		if v == nil {
			return true
		}
		if err := releaseVFD(*v); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}
