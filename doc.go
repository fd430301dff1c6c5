// Package wasicore provides the guest-visible descriptor subsystem of a
// WASI preview1 host: numbered virtual descriptors over files, directories
// and sockets, with capability-based rights, a stable slot allocator, and
// snapshot/resume of the whole table.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	wasicore/
//	├── pool/    Chunked slot allocator handing out stable guest indices
//	├── rights/  Per-descriptor capability bitsets that only ever narrow
//	├── errno/   Preview1 error numbers and the total host-error mapping
//	├── sock/    Async socket state machine over raw host descriptors
//	└── vfs/     The descriptor table and its dispatch-facing operations
//
// # Quick Start
//
// Build a table, open a file through a pre-opened directory, and take a
// snapshot:
//
//	table, err := vfs.NewTable(vfs.Config{
//	    Preopens: []vfs.Preopen{{HostPath: "/srv/app", GuestPath: "/"}},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer table.Close()
//
//	fd, _ := table.PathOpen(3, "data.txt", vfs.OCreate, rights.FdAll(), 0, 0)
//	table.FdWrite(fd, [][]byte{payload})
//
//	snap, _ := table.Snapshot()
//	raw, _ := snap.Encode()
//
// A later process resumes the table from raw bytes with vfs.Resume,
// reopening files by path and rebuilding sockets through a caller-supplied
// rehydrator.
//
// # Logging
//
// Each package exposes Logger and SetLogger and defaults to a no-op
// zap logger, so embedding hosts opt into diagnostics explicitly.
package wasicore
