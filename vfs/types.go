package vfs

import "github.com/wippyai/wasi-core/rights"

// FileType is the guest-visible descriptor type. Values are wire format.
type FileType uint8

const (
	FileTypeUnknown FileType = iota
	FileTypeBlockDevice
	FileTypeCharacterDevice
	FileTypeDirectory
	FileTypeRegularFile
	FileTypeSocketDgram
	FileTypeSocketStream
	FileTypeSymbolicLink
)

// FdFlags are the guest-visible descriptor flags. Values are wire format.
type FdFlags uint16

const (
	FdAppend FdFlags = 1 << iota
	FdDsync
	FdNonblock
	FdRsync
	FdSyncFlag
)

// Contains reports whether every bit of o is set in f.
func (f FdFlags) Contains(o FdFlags) bool {
	return f&o == o
}

// Intersects reports whether f and o share any bit.
func (f FdFlags) Intersects(o FdFlags) bool {
	return f&o != 0
}

// OFlags control path_open. Values are wire format.
type OFlags uint16

const (
	OCreate OFlags = 1 << iota
	ODirectory
	OExclusive
	OTruncate
)

// Contains reports whether every bit of o is set in f.
func (f OFlags) Contains(o OFlags) bool {
	return f&o == o
}

// FstFlags select which timestamps fd_filestat_set_times updates. Values
// are wire format.
type FstFlags uint16

const (
	FstAtim FstFlags = 1 << iota
	FstAtimNow
	FstMtim
	FstMtimNow
)

// Contains reports whether every bit of o is set in f.
func (f FstFlags) Contains(o FstFlags) bool {
	return f&o == o
}

// Whence selects the seek origin. Values are wire format.
type Whence uint8

const (
	WhenceSet Whence = iota
	WhenceCur
	WhenceEnd
)

// Fdstat is the descriptor-level metadata reported to the guest.
type Fdstat struct {
	FileType         FileType
	Flags            FdFlags
	RightsBase       rights.Rights
	RightsInheriting rights.Rights
}

// Filestat is the file-level metadata reported to the guest. Timestamps
// are nanoseconds since the epoch; zero means unknown.
type Filestat struct {
	Ino      uint64
	FileType FileType
	Nlink    uint64
	Size     uint64
	Atim     uint64
	Mtim     uint64
	Ctim     uint64
}

// DirEntry is one directory record. Next is the cookie a subsequent
// readdir passes to continue after this entry.
type DirEntry struct {
	Next uint64
	Ino  uint64
	Type FileType
	Name string
}
