// Package chat defines the replicated state of a meshchat node: the roster of
// Members and the append-only log of Messages, together with the Store that
// guards them.
//
// Every node owns exactly one Store. The Store is the only way to read or
// mutate the roster and the log; each operation runs in a single critical
// section that contains no I/O, so callers may use it freely from network
// goroutines.
//
// Members are identified by their ID alone. Two Member values with the same ID
// are the same participant even if their username or address differ.
//
// The log is not merged across peers. A Sync from a remote node replaces the
// local log wholesale (ReplaceAllMessages), which means that messages appended
// locally between the moment the remote snapshot was taken and the moment it
// is applied are lost. This is the documented behaviour of the protocol.
package chat
