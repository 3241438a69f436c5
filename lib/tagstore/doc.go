// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

// Package tagstore persists tag associations for content digests in
// SQLite.
//
// The store interns digests and tag names in their own tables and
// records associations as (hash_id, tag_id) pairs. All operations are
// idempotent: attaching a tag twice, or copying tags that already
// exist on the destination, changes nothing. Reads for an unknown
// digest return an empty tag list rather than an error — the store
// does not distinguish "never seen" from "seen but untagged".
package tagstore
