// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

// Package digest defines the content identity used throughout tagd: a
// 64-byte BLAKE2b-512 digest of the content bytes.
//
// Digests are computed client-side (the service never sees content,
// only identities) and travel on the wire as raw 64-byte strings. The
// canonical text form is 128 lowercase hex characters. Parsing is
// strict: any input that is not exactly 64 bytes fails with a
// [LengthError] carrying the offending length.
package digest
