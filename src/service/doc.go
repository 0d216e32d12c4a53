// Package service implements a read-only HTTP API to inspect a running
// meshchat node.
//
// Endpoints:
//
//	GET /stats     node statistics as a JSON map of strings
//	GET /members   the roster
//	GET /messages  the message log, oldest first
package service
