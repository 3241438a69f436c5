// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

// Package tagrpc implements the wire protocol between the tag client
// and the tag service.
//
// Messages are CBOR values framed with a 4-byte big-endian length
// prefix. Connections are persistent: a client sends any number of
// requests over one connection and receives responses in request
// order. Every request carries an "op" field naming the operation;
// every response is a [Response] envelope with a status, an optional
// error message, and an optional operation-specific payload.
//
// The status taxonomy is closed: "ok", "invalid_argument" for
// requests rejected before touching storage, and "unavailable" for
// storage faults. A digest the service has never seen is not an
// error — it reads back as an empty tag list under "ok".
package tagrpc
