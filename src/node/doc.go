// Package node implements the reactive part of a meshchat node.
//
// A Node owns the local Member, the Chat store, the Registry of outbound
// queues, and one Session per connected peer. It accepts inbound connections,
// dials the addresses it is given, and applies every inbound packet through a
// single PacketHandler.
//
// # Joining
//
// A node joins the mesh by dialing any one member, chosen explicitly or found
// with multicast discovery. The dialed session sends Identity(self, true) and
// InitSyncRequest. The remote member answers with its own Identity and a Sync
// of its Chat. The joining node adopts the message log from the Sync and dials
// every member of the Sync roster it did not know about, so that the mesh
// stays fully connected.
//
// # Messages
//
// Messages typed locally are appended to the log and queued on every session.
// Messages received from a peer are appended and displayed but never relayed:
// every member is directly connected to every other one.
package node
