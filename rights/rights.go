// Package rights models per-descriptor capability sets. Every descriptor
// carries a base set (operations allowed on it) and an inheriting set
// (operations descriptors opened through it may receive). Rights only ever
// narrow: a child's set is the intersection of what its parent holds and
// what the caller requested, and in-place updates must be subsets of the
// current set.
package rights

import "errors"

// ErrNotCapable reports an operation the descriptor's rights do not cover.
// The dispatch layer maps it to the guest's capability errno.
var ErrNotCapable = errors.New("rights: operation not covered by descriptor rights")

// Rights is a capability bitset. Bit positions are part of the guest ABI
// and never change.
type Rights uint64

const (
	FdDatasync Rights = 1 << iota
	FdRead
	FdSeek
	FdFdstatSetFlags
	FdSync
	FdTell
	FdWrite
	FdAdvise
	FdAllocate
	PathCreateDirectory
	PathCreateFile
	PathLinkSource
	PathLinkTarget
	PathOpen
	FdReaddir
	PathReadlink
	PathRenameSource
	PathRenameTarget
	PathFilestatGet
	PathFilestatSetSize
	PathFilestatSetTimes
	FdFilestatGet
	FdFilestatSetSize
	FdFilestatSetTimes
	PathSymlink
	PathRemoveDirectory
	PathUnlinkFile
	PollFdReadwrite
	SockShutdown
	SockOpen
	SockClose
	SockBind
	SockRecv
	SockRecvFrom
	SockSend
	SockSendTo
)

// FdAll is every right that applies to a regular file descriptor.
func FdAll() Rights {
	return FdDatasync | FdRead | FdSeek | FdFdstatSetFlags | FdSync | FdTell |
		FdWrite | FdAdvise | FdAllocate | FdFilestatGet | FdFilestatSetSize |
		FdFilestatSetTimes | PollFdReadwrite
}

// DirAll is every right that applies to a directory descriptor.
func DirAll() Rights {
	return PathCreateDirectory | PathCreateFile | PathLinkSource | PathLinkTarget |
		PathOpen | FdReaddir | PathReadlink | PathRenameSource | PathRenameTarget |
		PathFilestatGet | PathFilestatSetSize | PathFilestatSetTimes |
		PathSymlink | PathRemoveDirectory | PathUnlinkFile |
		FdFilestatGet | FdFilestatSetTimes | FdFdstatSetFlags
}

// StreamSocket is the default set granted to a freshly opened stream socket.
func StreamSocket() Rights {
	return SockBind | SockClose | SockRecv | SockSend | SockShutdown | PollFdReadwrite
}

// DatagramSocket is the default set granted to a freshly opened datagram
// socket.
func DatagramSocket() Rights {
	return SockBind | SockClose | SockRecvFrom | SockSendTo | SockShutdown | PollFdReadwrite
}

// ConnectedSocket is the default set granted to sockets produced by accept.
func ConnectedSocket() Rights {
	return SockRecv | SockSend | SockShutdown | SockClose | PollFdReadwrite
}

// Contains reports whether every bit of o is set in r.
func (r Rights) Contains(o Rights) bool {
	return r&o == o
}

// Can returns ErrNotCapable unless r covers every bit of required.
func (r Rights) Can(required Rights) error {
	if !r.Contains(required) {
		return ErrNotCapable
	}
	return nil
}

// Intersect narrows r to the bits also present in o.
func (r Rights) Intersect(o Rights) Rights {
	return r & o
}
