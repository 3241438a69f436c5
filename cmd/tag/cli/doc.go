// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command tree, help formatting, and output
// helpers for the tag binary.
package cli
