// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Tagd's standard CBOR encoding configuration.
//
// Tagd uses two serialization formats with a clear boundary:
//
//   - CBOR for the wire protocol between the tag client and the
//     service socket.
//   - JSON for CLI --json output, aimed at shell pipelines.
//
// This package provides the shared CBOR encoding and decoding modes so
// that both sides of the wire encode identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC
// 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes.
//
// For buffer-oriented operations (framed messages):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Protocol types carry `cbor` struct tags; types that also appear in
// CLI --json output carry `json` tags only, relying on fxamacker's
// json-tag fallback so a single tag controls field naming for both
// formats. Never use both tags on the same field.
package codec
