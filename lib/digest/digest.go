// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

package digest

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// Size is the digest length in bytes. Every content identity in the
// system is exactly this size; shorter or longer values are rejected
// at parse time, never truncated or padded.
const Size = blake2b.Size

// HexSize is the length of the canonical lowercase-hex text form.
const HexSize = 2 * Size

// readChunkSize is the buffer size for streaming content through the
// hash function. Content larger than memory hashes in constant space.
const readChunkSize = 8192

// Digest is a 64-byte BLAKE2b-512 content digest. It is the sole
// identity of a piece of content: two byte sequences are the same
// content if and only if their digests are equal.
type Digest [Size]byte

// LengthError reports an attempt to parse a digest of the wrong
// length. It carries the offending length for diagnostics and maps to
// an invalid-argument status at the service boundary.
type LengthError struct {
	// Length is the byte length of the rejected input.
	Length int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("digest is %d bytes, want %d", e.Length, Size)
}

// FromReader computes the digest of everything readable from r. The
// input streams through the hash in fixed-size chunks; the result
// depends only on the bytes, not on how reads happen to be sized.
func FromReader(r io.Reader) (Digest, error) {
	hasher, err := blake2b.New512(nil)
	if err != nil {
		// New512 fails only for an oversized key; we pass none.
		panic("digest: BLAKE2b initialization failed: " + err.Error())
	}

	if _, err := io.CopyBuffer(hasher, r, make([]byte, readChunkSize)); err != nil {
		return Digest{}, fmt.Errorf("hashing content: %w", err)
	}

	var d Digest
	copy(d[:], hasher.Sum(nil))
	return d, nil
}

// FromFile computes the digest of the file at path. The file is
// streamed; memory usage is constant regardless of file size.
func FromFile(path string) (Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	d, err := FromReader(file)
	if err != nil {
		return Digest{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	return d, nil
}

// Parse validates b as a raw wire digest. Succeeds only for input of
// exactly Size bytes; anything else returns a *LengthError.
func Parse(b []byte) (Digest, error) {
	if len(b) != Size {
		return Digest{}, &LengthError{Length: len(b)}
	}
	var d Digest
	copy(d[:], b)
	return d, nil
}

// ParseHex parses the canonical 128-character hex form into a Digest.
func ParseHex(hexString string) (Digest, error) {
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return Digest{}, fmt.Errorf("parsing digest hex: %w", err)
	}
	return Parse(decoded)
}

// Hex returns the canonical text form: 128 lowercase hex characters.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// Bytes returns the raw 64-byte wire form.
func (d Digest) Bytes() []byte {
	return d[:]
}

// String implements fmt.Stringer using the canonical hex form.
func (d Digest) String() string {
	return d.Hex()
}
