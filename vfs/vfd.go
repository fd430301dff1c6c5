package vfs

import "github.com/wippyai/wasi-core/sock"

// VFD is the payload stored at one guest-visible descriptor index. It is
// one of *InodeVFD, *SocketVFD, or the internal closed marker a descriptor
// carries between its close and its lazy erasure.
type VFD interface {
	vfd()
}

// InodeVFD is a descriptor pointing at a filesystem node.
type InodeVFD struct {
	Node Node
}

// SocketVFD is a descriptor pointing at a network socket.
type SocketVFD struct {
	Socket *sock.Socket
}

// closedVFD marks a slot whose descriptor was closed but whose index has
// not been reclaimed yet. Lookups treat it exactly like an unallocated
// index.
type closedVFD struct{}

func (*InodeVFD) vfd()  {}
func (*SocketVFD) vfd() {}
func (closedVFD) vfd()  {}

func (v *InodeVFD) release() error {
	return v.Node.Close()
}

func (v *SocketVFD) release() error {
	return v.Socket.Close()
}

// releaseVFD closes whatever host resource the payload owns.
func releaseVFD(v VFD) error {
	switch p := v.(type) {
	case *InodeVFD:
		return p.release()
	case *SocketVFD:
		return p.release()
	default:
		return nil
	}
}
