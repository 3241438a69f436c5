// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

// Tag is the command-line client for the tagd service. It hashes
// files locally with BLAKE2b-512 and attaches, queries, and copies
// text tags keyed by those digests. The file content never leaves the
// machine; only 64-byte digests travel to the service.
//
// Subcommands: add, get, get-many, copy. All accept --config to name
// the shared tagd.yaml and --json for machine-readable output.
package main
