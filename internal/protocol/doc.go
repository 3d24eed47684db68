// Package protocol owns the remote-control wire contract.
//
// Ownership boundary:
// - frame header primitives (frame)
// - JSON command/response/event envelopes (envelope)
// - shared constants and sentinel errors
package protocol
