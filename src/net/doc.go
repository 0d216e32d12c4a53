// Package net implements the TCP side of a meshchat node: the packet protocol
// spoken between peers, the per-connection Session, and the Registry used to
// fan locally authored messages out to every live Session.
//
// # Packets
//
// Four packets make up the protocol: UserMessage, InitSyncRequest, Sync and
// Identity. Each one is encoded as a single JSON value followed by a newline.
// The encoding is externally tagged, ie. the variant name is the only key of
// the top-level object, or the whole value for InitSyncRequest:
//
//	{"UserMessage":{"sender":{...},"text":"hi","timestamp":1580000000}}
//	"InitSyncRequest"
//	{"Sync":{"all_messages":[...],"members":[...]}}
//	{"Identity":[{"ip":"10.0.0.2","port":9001,"username":"bob","id":"..."},true]}
//
// A line that fails to decode is logged and dropped; it does not close the
// connection.
//
// # Sessions
//
// A Session owns one connection. Its writer goroutine is the only code that
// writes to the socket: everything else, including the packet handler and the
// Registry, enqueues packets on the Session's Queue. The reader loop decodes
// one packet per line and hands it to a Handler in arrival order. When the
// remote end closes the stream, the member that identified itself on this
// Session is removed from the roster.
//
// A dialed Session starts in the Connecting state and moves to Open once the
// Identity/InitSyncRequest handshake has been queued. An accepted Session is
// Open from the start and waits for the remote Identity.
package net
