//go:build unix

package vfs

import (
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/wasi-core/pool"
	"github.com/wippyai/wasi-core/rights"
	"github.com/wippyai/wasi-core/sock"
)

// snapshotVersion guards the wire layout of Snapshot.
const snapshotVersion = 1

// EntrySnapshot is the serialized form of one descriptor slot.
type EntrySnapshot struct {
	Kind             string         `cbor:"kind" json:"kind"`
	HostPath         string         `cbor:"host_path,omitempty" json:"host_path,omitempty"`
	GuestPath        string         `cbor:"guest_path,omitempty" json:"guest_path,omitempty"`
	Flags            uint16         `cbor:"flags,omitempty" json:"flags,omitempty"`
	RightsBase       uint64         `cbor:"rights_base,omitempty" json:"rights_base,omitempty"`
	RightsInheriting uint64         `cbor:"rights_inheriting,omitempty" json:"rights_inheriting,omitempty"`
	Offset           uint64         `cbor:"offset,omitempty" json:"offset,omitempty"`
	Socket           *sock.Snapshot `cbor:"socket,omitempty" json:"socket,omitempty"`
}

const (
	kindStdin   = "stdin"
	kindStdout  = "stdout"
	kindFile    = "file"
	kindDir     = "dir"
	kindPreopen = "preopen"
	kindSocket  = "socket"
	kindClosed  = "closed"
)

// Snapshot is the serialized descriptor table: the slot pool's exact run
// topology plus the table-level bookkeeping, so a resumed table allocates
// the same descriptors the original would have.
type Snapshot struct {
	Version      uint16                            `cbor:"version" json:"version"`
	FdSegments   [][]pool.SerialRun[EntrySnapshot] `cbor:"fd_segments" json:"fd_segments"`
	PreopenLimit int32                             `cbor:"preopen_limit" json:"preopen_limit"`
	PendingClose int32                             `cbor:"pending_close" json:"pending_close"`
}

var snapshotEnc cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	snapshotEnc = em
}

// Snapshot serializes the table. Descriptors backed by host resources are
// described, not captured: files record their path, flags, rights and
// cursor, sockets their guest-visible state. Custom nodes that the
// snapshot layer does not know how to describe make the snapshot fail.
func (t *Table) Snapshot() (Snapshot, error) {
	var convErr error
	segs := pool.Export(t.pool, func(index int, v *VFD) EntrySnapshot {
		e, err := exportEntry(*v)
		if err != nil && convErr == nil {
			convErr = fmt.Errorf("descriptor %d: %w", index, err)
		}
		return e
	})
	if convErr != nil {
		return Snapshot{}, convErr
	}
	return Snapshot{
		Version:      snapshotVersion,
		FdSegments:   segs,
		PreopenLimit: t.preopenLimit,
		PendingClose: t.pending,
	}, nil
}

func exportEntry(v VFD) (EntrySnapshot, error) {
	switch p := v.(type) {
	case closedVFD:
		return EntrySnapshot{Kind: kindClosed}, nil
	case *SocketVFD:
		snap := p.Socket.Export()
		return EntrySnapshot{Kind: kindSocket, Socket: &snap}, nil
	case *InodeVFD:
		switch n := p.Node.(type) {
		case *stdinNode:
			return EntrySnapshot{Kind: kindStdin}, nil
		case *stdoutNode:
			return EntrySnapshot{Kind: kindStdout}, nil
		case *DiskFile:
			offset, err := n.Tell()
			if err != nil {
				return EntrySnapshot{}, err
			}
			return EntrySnapshot{
				Kind:             kindFile,
				HostPath:         n.hostPath,
				Flags:            uint16(n.flags),
				RightsBase:       uint64(n.base),
				RightsInheriting: uint64(n.inheriting),
				Offset:           offset,
			}, nil
		case *PreOpenDir:
			return EntrySnapshot{
				Kind:             kindPreopen,
				HostPath:         n.hostPath,
				GuestPath:        n.guestPath,
				Flags:            uint16(n.flags),
				RightsBase:       uint64(n.dirRights),
				RightsInheriting: uint64(n.fileRights),
			}, nil
		case *DiskDir:
			return EntrySnapshot{
				Kind:             kindDir,
				HostPath:         n.hostPath,
				Flags:            uint16(n.flags),
				RightsBase:       uint64(n.dirRights),
				RightsInheriting: uint64(n.fileRights),
			}, nil
		default:
			return EntrySnapshot{}, fmt.Errorf("vfs: node %T is not snapshottable", p.Node)
		}
	default:
		return EntrySnapshot{}, fmt.Errorf("vfs: payload %T is not snapshottable", v)
	}
}

// Encode renders the snapshot as canonical CBOR.
func (s Snapshot) Encode() ([]byte, error) {
	return snapshotEnc.Marshal(s)
}

// DecodeSnapshot parses canonical CBOR produced by Encode.
func DecodeSnapshot(b []byte) (Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(b, &s); err != nil {
		return Snapshot{}, err
	}
	if s.Version != snapshotVersion {
		return Snapshot{}, fmt.Errorf("vfs: unsupported snapshot version %d", s.Version)
	}
	return s, nil
}

// SocketRehydrator re-establishes a socket's host descriptor from its
// snapshotted guest-visible state. Returning an error aborts the resume.
type SocketRehydrator func(sock.Snapshot) (*sock.Socket, error)

// ResumeConfig supplies the host resources a snapshot cannot carry. Nil
// stdio streams default to the host process streams. Sockets is required
// only when the snapshot contains socket descriptors.
type ResumeConfig struct {
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Sockets SocketRehydrator
}

// Resume rebuilds a table from a snapshot. Descriptor numbering, rights,
// flags and file cursors are restored exactly; host resources are
// re-acquired (files reopened by path, sockets through the rehydrator).
func Resume(snap Snapshot, cfg ResumeConfig) (*Table, error) {
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}

	p, err := pool.Import(snap.FdSegments, func(index int, e EntrySnapshot) (VFD, error) {
		v, err := resumeEntry(e, cfg)
		if err != nil {
			return nil, fmt.Errorf("descriptor %d: %w", index, err)
		}
		return v, nil
	})
	if err != nil {
		return nil, err
	}

	t := &Table{pool: p, preopenLimit: snap.PreopenLimit, pending: -1}
	if snap.PendingClose >= 0 {
		t.pending = snap.PendingClose
	}
	return t, nil
}

func resumeEntry(e EntrySnapshot, cfg ResumeConfig) (VFD, error) {
	switch e.Kind {
	case kindClosed:
		return closedVFD{}, nil
	case kindStdin:
		return &InodeVFD{Node: NewStdin(cfg.Stdin)}, nil
	case kindStdout:
		return &InodeVFD{Node: NewStdout(cfg.Stdout)}, nil
	case kindFile:
		return resumeFile(e)
	case kindDir:
		return &InodeVFD{Node: &DiskDir{
			hostPath:   e.HostPath,
			flags:      FdFlags(e.Flags),
			dirRights:  rights.Rights(e.RightsBase),
			fileRights: rights.Rights(e.RightsInheriting),
		}}, nil
	case kindPreopen:
		return &InodeVFD{Node: &PreOpenDir{
			DiskDir: DiskDir{
				hostPath:   e.HostPath,
				flags:      FdFlags(e.Flags),
				dirRights:  rights.Rights(e.RightsBase),
				fileRights: rights.Rights(e.RightsInheriting),
			},
			guestPath: e.GuestPath,
		}}, nil
	case kindSocket:
		if e.Socket == nil {
			return nil, fmt.Errorf("vfs: socket entry without socket state")
		}
		if cfg.Sockets == nil {
			return nil, fmt.Errorf("vfs: snapshot contains sockets but no rehydrator is configured")
		}
		s, err := cfg.Sockets(*e.Socket)
		if err != nil {
			return nil, err
		}
		return &SocketVFD{Socket: s}, nil
	default:
		return nil, fmt.Errorf("vfs: unknown descriptor kind %q", e.Kind)
	}
}

func resumeFile(e EntrySnapshot) (VFD, error) {
	base := rights.Rights(e.RightsBase)
	flags := FdFlags(e.Flags)

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
	if flags.Contains(FdAppend) {
		mode |= os.O_APPEND
	}

	f, err := os.OpenFile(e.HostPath, mode, 0)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(int64(e.Offset), io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return &InodeVFD{Node: &DiskFile{
		f:          f,
		hostPath:   e.HostPath,
		flags:      flags,
		base:       base,
		inheriting: rights.Rights(e.RightsInheriting),
	}}, nil
}
