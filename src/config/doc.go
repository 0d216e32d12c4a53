// Package config defines the configuration for a meshchat node.
//
// Regardless of how a node is started, directly from Go code or from the
// meshchat command, it uses the Config object defined in this package. The
// command binds its flags into the same object, then merges an optional
// meshchat.toml (or .json, .yaml) found in Config.DataDir. Nothing is
// persisted: the data directory is only read.
package config
