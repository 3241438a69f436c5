// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

package tagrpc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/contenttag/tagd/lib/codec"
	"github.com/contenttag/tagd/lib/digest"
	"github.com/contenttag/tagd/lib/tag"
)

// Operation names. Every request carries one in its "op" field; the
// server routes on it.
const (
	OpGetTags         = "get-tags"
	OpAddTags         = "add-tags"
	OpGetMultipleTags = "get-multiple-tags"
	OpCopyTags        = "copy-tags"
)

// MaxMessageSize is the maximum size of a single framed message.
// Frames are length-prefixed with a 4-byte uint32, so the theoretical
// limit is ~4GB. We cap at 1MB to keep memory bounded; the largest
// legitimate request (a full batch of digests) is well under this.
const MaxMessageSize = 1024 * 1024

// Status classifies the outcome of an operation. A missing digest is
// not a failure: it produces StatusOK with an empty tag list.
type Status string

const (
	// StatusOK means the operation completed.
	StatusOK Status = "ok"

	// StatusInvalidArgument means the request was rejected before
	// touching storage: malformed frame, unknown operation, bad
	// digest length, or tag length out of bounds. Retrying the same
	// request will fail the same way.
	StatusInvalidArgument Status = "invalid_argument"

	// StatusUnavailable means the storage layer failed. The request
	// may succeed if retried.
	StatusUnavailable Status = "unavailable"
)

// GetTagsRequest asks for the tags attached to one digest.
type GetTagsRequest struct {
	Op   string `cbor:"op"`
	Hash []byte `cbor:"hash"`
}

// AddTagsRequest attaches tags to one digest.
type AddTagsRequest struct {
	Op   string   `cbor:"op"`
	Hash []byte   `cbor:"hash"`
	Tags []string `cbor:"tags"`
}

// GetMultipleTagsRequest asks for the tags of a batch of digests in
// one round trip.
type GetMultipleTagsRequest struct {
	Op     string   `cbor:"op"`
	Hashes [][]byte `cbor:"hashes"`
}

// CopyTagsRequest attaches every tag of the source digest to the
// destination digest.
type CopyTagsRequest struct {
	Op              string `cbor:"op"`
	SourceHash      []byte `cbor:"source_hash"`
	DestinationHash []byte `cbor:"destination_hash"`
}

// Response is the wire envelope for every reply. Status is always
// set; Error carries a human-readable message when Status is not OK;
// Data holds the operation-specific payload when there is one.
type Response struct {
	Status Status           `cbor:"status"`
	Error  string           `cbor:"error,omitempty"`
	Data   codec.RawMessage `cbor:"data,omitempty"`
}

// TagList is the payload of a get-tags response.
type TagList struct {
	Tags []string `cbor:"tags"`
}

// TagLists is the payload of a get-multiple-tags response. Entry i
// holds the tags of the i-th requested digest.
type TagLists struct {
	TagLists [][]string `cbor:"tag_lists"`
}

// requestError marks a request the server rejected before touching
// storage. It maps to StatusInvalidArgument.
type requestError struct {
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(format string, args ...any) error {
	return &requestError{message: fmt.Sprintf(format, args...)}
}

// statusFor maps an operation error to its wire status. Validation
// failures are the client's fault and not retryable; everything else
// is treated as a storage fault.
func statusFor(err error) Status {
	var digestErr *digest.LengthError
	var tagErr *tag.LengthError
	var reqErr *requestError
	switch {
	case errors.As(err, &digestErr), errors.As(err, &tagErr), errors.As(err, &reqErr):
		return StatusInvalidArgument
	default:
		return StatusUnavailable
	}
}

// WriteMessage encodes v as CBOR and writes it as one length-prefixed
// frame: a 4-byte big-endian uint32 length followed by the payload.
func WriteMessage(w io.Writer, v any) error {
	payload, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("tagrpc: encoding message: %w", err)
	}
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("tagrpc: message size %d exceeds limit %d", len(payload), MaxMessageSize)
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("tagrpc: writing frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("tagrpc: writing frame payload: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed frame and decodes its CBOR
// payload into v. Returns io.EOF unwrapped when the stream ends
// cleanly at a frame boundary, so callers can detect a closed peer.
func ReadMessage(r io.Reader, v any) error {
	payload, err := readFrame(r)
	if err != nil {
		return err
	}
	if err := codec.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("tagrpc: decoding message: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame, enforcing the size cap
// before allocating.
func readFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("tagrpc: reading frame header: %w", err)
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > MaxMessageSize {
		return nil, fmt.Errorf("tagrpc: frame size %d exceeds limit %d", size, MaxMessageSize)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("tagrpc: reading frame payload: %w", err)
	}
	return payload, nil
}
