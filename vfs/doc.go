// Package vfs implements the guest-visible virtual descriptor table: the
// numbered handles a sandboxed guest holds on files, directories, and
// sockets, together with the operations the dispatch layer exposes on
// them.
//
// # Descriptor layout
//
// A table starts with stdio at descriptors 0-2 and one descriptor per
// pre-opened directory after them. Those seed descriptors are protected:
// close, remove and renumber refuse to touch them. Everything above the
// protected range is allocated lowest-index-first by a slot pool, so
// descriptor numbers are dense and reused promptly, the way guests expect.
//
// # Operations
//
// Every operation takes a descriptor plus typed arguments and reports
// failure as a guest errno. Lookups verify three things in order: the
// descriptor resolves, its payload has the right shape (file, directory,
// or socket), and its capability set covers the operation. Rights only
// narrow over a descriptor's lifetime.
//
//	table, _ := vfs.NewTable(vfs.Config{
//		Preopens: []vfs.Preopen{{HostPath: "/srv/data", GuestPath: "/data"}},
//	})
//	fd, _ := table.PathOpen(3, "log.txt", vfs.OCreate, rights.FdAll(), 0, 0)
//	table.FdWrite(fd, [][]byte{data})
//
// # Snapshot and resume
//
// Snapshot serializes the table, including the slot pool's exact free-list
// topology, as canonical CBOR. Resume rebuilds it so that descriptor
// numbers, rights, flags and file cursors match and future allocations
// pick the same indices the original table would have. Host resources are
// re-acquired on resume: files reopen by path, sockets go through a
// caller-supplied rehydrator.
package vfs
