// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

// Tagd is the tag service daemon. It serves the framed CBOR tag
// protocol on a Unix socket or TCP endpoint, backed by a SQLite tag
// store.
//
// Configuration comes from a YAML file named by --config or the
// TAGD_CONFIG environment variable; with neither set, built-in
// defaults place the database and socket under ~/.local/share/tagd.
//
// The daemon shuts down on SIGINT or SIGTERM, draining in-flight
// requests before exiting.
package main
