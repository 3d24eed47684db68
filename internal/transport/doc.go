// Package transport owns the application side of the driver connection.
//
// Ownership boundary:
// - connect with bounded or unbounded fixed-delay retry
// - one background reader goroutine per Transport
// - full-buffer write path guarded by a write lock
// - the Disconnected -> Connecting -> Connected -> Closed state machine
//
// A Transport is single-use: once Closed it never reconnects. Construct a
// new one to reconnect.
package transport
