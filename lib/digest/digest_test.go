// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

package digest_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/contenttag/tagd/lib/digest"
)

// pinnedInputLength and pinnedHex are a fixed regression vector:
// BLAKE2b-512 of 3×8192−28 repetitions of 'a'. The length straddles
// several read-buffer boundaries, so a chunking bug shows up here.
const (
	pinnedInputLength = 3*8192 - 28
	pinnedHex         = "140def0a7a9c50efd14d7a11330e8a8c4d0cf3a1d1fe0953060c13a78928ded1" +
		"52d198c7e20a69d237b98ee3639822156fb78778577a97efd1dccabb6c4a74f6"
)

func TestPinnedVector(t *testing.T) {
	input := bytes.Repeat([]byte{'a'}, pinnedInputLength)

	d, err := digest.FromReader(bytes.NewReader(input))
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}

	if d.Hex() != pinnedHex {
		t.Errorf("digest = %s, want %s", d.Hex(), pinnedHex)
	}
	if len(d.Hex()) != digest.HexSize {
		t.Errorf("hex length = %d, want %d", len(d.Hex()), digest.HexSize)
	}
}

// chunkedReader yields at most chunkSize bytes per Read call,
// regardless of the caller's buffer size.
type chunkedReader struct {
	inner     io.Reader
	chunkSize int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(p) > r.chunkSize {
		p = p[:r.chunkSize]
	}
	return r.inner.Read(p)
}

func TestChunkSizeIndependence(t *testing.T) {
	input := bytes.Repeat([]byte{'a'}, pinnedInputLength)

	for _, chunkSize := range []int{1, 8192, len(input)} {
		d, err := digest.FromReader(&chunkedReader{
			inner:     bytes.NewReader(input),
			chunkSize: chunkSize,
		})
		if err != nil {
			t.Fatalf("FromReader (chunk size %d): %v", chunkSize, err)
		}
		if d.Hex() != pinnedHex {
			t.Errorf("chunk size %d: digest = %s, want %s", chunkSize, d.Hex(), pinnedHex)
		}
	}
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content")
	input := bytes.Repeat([]byte{'a'}, pinnedInputLength)
	if err := os.WriteFile(path, input, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	d, err := digest.FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if d.Hex() != pinnedHex {
		t.Errorf("digest = %s, want %s", d.Hex(), pinnedHex)
	}
}

func TestFromFileMissing(t *testing.T) {
	_, err := digest.FromFile(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseLength(t *testing.T) {
	valid := make([]byte, digest.Size)
	if _, err := digest.Parse(valid); err != nil {
		t.Fatalf("Parse(64 bytes): %v", err)
	}

	for _, length := range []int{0, 20, 63, 65, 128} {
		_, err := digest.Parse(make([]byte, length))
		var lengthErr *digest.LengthError
		if !errors.As(err, &lengthErr) {
			t.Fatalf("Parse(%d bytes): err = %v, want *LengthError", length, err)
		}
		if lengthErr.Length != length {
			t.Errorf("LengthError.Length = %d, want %d", lengthErr.Length, length)
		}
	}
}

func TestHexRoundTrip(t *testing.T) {
	d, err := digest.FromReader(strings.NewReader("round trip"))
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}

	parsed, err := digest.ParseHex(d.Hex())
	if err != nil {
		t.Fatalf("ParseHex: %v", err)
	}
	if parsed != d {
		t.Errorf("round trip mismatch: %s != %s", parsed.Hex(), d.Hex())
	}

	reparsed, err := digest.Parse(d.Bytes())
	if err != nil {
		t.Fatalf("Parse(Bytes()): %v", err)
	}
	if reparsed != d {
		t.Error("byte round trip mismatch")
	}
}

func TestParseHexRejectsBadInput(t *testing.T) {
	if _, err := digest.ParseHex("zz"); err == nil {
		t.Error("expected error for non-hex input")
	}
	if _, err := digest.ParseHex(strings.Repeat("ab", 20)); err == nil {
		t.Error("expected error for short hex input")
	}
}
