// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for Tagd
// binaries: fatal error reporting to stderr when the structured
// logger may not be initialized, and process exit after an
// unrecoverable error in main(). Service code proper logs through
// slog instead of writing to stderr directly.
package process
