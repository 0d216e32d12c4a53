// Package discovery finds other meshchat nodes on the local network with UDP
// multicast.
//
// Two datagrams are exchanged on the group (239.255.42.99:9000 by default),
// each a single JSON object of at most 1024 bytes whose only key names the
// kind, in the same tagged form as the TCP packets:
//
//	{"Discovery":"<sender id>"}
//	{"DiscoveryRes":["10.0.0.3",41234,"<sender id>","<target id>"]}
//
// A Broadcaster sends a few Discovery probes at startup and stops. A Listener
// answers every probe it did not send itself with a DiscoveryRes, sent back to
// the whole group, and turns every DiscoveryRes addressed to it into a
// Candidate that the node can dial.
package discovery
