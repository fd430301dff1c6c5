// Package pool implements a chunked slot allocator with stable integer
// indices. It backs descriptor tables that hand out small, reusable,
// guest-visible indices.
//
// # Layout
//
// Storage grows in fixed 512-slot segments. Free space inside a segment is
// tracked by an intrusive linked structure of run headers: slot 0 of every
// segment is always a header, and each header records where its occupied run
// ends (next free slot) and where the next run begins. Headers are threaded
// through the otherwise-unused free slots, so bookkeeping costs no extra
// allocation.
//
// # Guarantees
//
//	pool := pool.New[string]()
//
//	idx, _ := pool.Push("a")   // lowest free index, O(segments)
//	v := pool.Get(idx)         // O(1), nil for holes
//	pool.Remove(idx)           // frees the index for reuse
//
// Push always fills the lowest free index across all segments. Indices stay
// stable for the lifetime of their value: no operation moves a live value to
// a different index. Remove, Get and Each tolerate arbitrary indices from
// untrusted callers; only internal header-chain corruption panics.
//
// Export and Import serialize the pool as per-segment run lists, preserving
// the exact header topology so a restored pool allocates the same indices
// the original would have.
package pool
