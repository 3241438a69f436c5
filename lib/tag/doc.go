// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

// Package tag defines the validated text label attached to content
// digests. A tag is between 1 and 255 Unicode scalar values; both
// bounds are inclusive. Validation happens on both sides of the wire.
package tag
