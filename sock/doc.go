// Package sock implements guest-visible network sockets on top of raw host
// descriptors.
//
// A socket moves through two phases. It starts pre-open: the host
// descriptor exists but cannot be polled, and readiness-dependent calls
// fail with ENOTCONN. Binding, listening, or connecting registers the
// socket, which is a one-way transition; once registered a socket can wait
// for readiness and never returns to pre-open.
//
// Blocking behavior is decided per call from two pieces of guest-visible
// state, the nonblocking flag and the relevant send or receive timeout:
//
//	nonblocking, no timeout   race one short internal slice, then EAGAIN
//	blocking, no timeout      wait indefinitely
//	any, timeout t            wait at most t, then EAGAIN
//
// A zero timeout means no timeout. The same policy applies uniformly to
// connect, accept, send, recv, send_to and recv_from.
//
// All guest-visible socket state (addresses, timeouts, flags, rights) lives
// in State, which is what snapshots persist; the host descriptor itself is
// never serialized and must be re-established on resume.
package sock
