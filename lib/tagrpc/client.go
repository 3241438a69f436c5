// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

package tagrpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/contenttag/tagd/lib/codec"
	"github.com/contenttag/tagd/lib/digest"
	"github.com/contenttag/tagd/lib/tag"
)

// defaultCallTimeout bounds a single request-response cycle when the
// caller's context carries no deadline of its own.
const defaultCallTimeout = 45 * time.Second

// ServiceError is a failure reported by the service. Status
// distinguishes rejected requests (StatusInvalidArgument) from
// storage faults (StatusUnavailable).
type ServiceError struct {
	Op      string
	Status  Status
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Status, e.Message)
}

// Client is a persistent connection to the tag service. A single
// Client is safe for concurrent use; calls are serialized over the
// one connection. Close the client when done.
type Client struct {
	// mu serializes request-response cycles. The protocol has no
	// request IDs, so responses are matched to requests by order.
	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to the tag service at the given network address
// ("unix" with a socket path, or "tcp" with host:port).
func Dial(ctx context.Context, network, address string) (*Client, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("tagrpc: dialing %s %s: %w", network, address, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection. In-flight calls fail.
func (c *Client) Close() error {
	return c.conn.Close()
}

// GetTags returns the tags attached to d, sorted by name. An unknown
// digest yields an empty slice.
func (c *Client) GetTags(ctx context.Context, d digest.Digest) ([]tag.Tag, error) {
	response, err := c.call(ctx, OpGetTags, GetTagsRequest{
		Op:   OpGetTags,
		Hash: d.Bytes(),
	})
	if err != nil {
		return nil, err
	}

	var payload TagList
	if err := codec.Unmarshal(response.Data, &payload); err != nil {
		return nil, fmt.Errorf("tagrpc: decoding get-tags payload: %w", err)
	}
	return c.validateTags(OpGetTags, payload.Tags)
}

// AddTags attaches tags to d. Attaching a tag that is already present
// is a no-op on the service side.
func (c *Client) AddTags(ctx context.Context, d digest.Digest, tags []tag.Tag) error {
	_, err := c.call(ctx, OpAddTags, AddTagsRequest{
		Op:   OpAddTags,
		Hash: d.Bytes(),
		Tags: tag.Strings(tags),
	})
	return err
}

// GetMultipleTags returns the tag lists for a batch of digests in one
// round trip. Results line up with the input: result[i] holds the
// tags of digests[i].
func (c *Client) GetMultipleTags(ctx context.Context, digests []digest.Digest) ([][]tag.Tag, error) {
	hashes := make([][]byte, len(digests))
	for i, d := range digests {
		hashes[i] = d.Bytes()
	}

	response, err := c.call(ctx, OpGetMultipleTags, GetMultipleTagsRequest{
		Op:     OpGetMultipleTags,
		Hashes: hashes,
	})
	if err != nil {
		return nil, err
	}

	var payload TagLists
	if err := codec.Unmarshal(response.Data, &payload); err != nil {
		return nil, fmt.Errorf("tagrpc: decoding get-multiple-tags payload: %w", err)
	}
	if len(payload.TagLists) != len(digests) {
		return nil, fmt.Errorf("tagrpc: got %d tag lists for %d digests",
			len(payload.TagLists), len(digests))
	}

	results := make([][]tag.Tag, len(payload.TagLists))
	for i, names := range payload.TagLists {
		tags, err := c.validateTags(OpGetMultipleTags, names)
		if err != nil {
			return nil, err
		}
		results[i] = tags
	}
	return results, nil
}

// CopyTags attaches every tag of source to destination. Nothing is
// removed from either digest.
func (c *Client) CopyTags(ctx context.Context, source, destination digest.Digest) error {
	_, err := c.call(ctx, OpCopyTags, CopyTagsRequest{
		Op:              OpCopyTags,
		SourceHash:      source.Bytes(),
		DestinationHash: destination.Bytes(),
	})
	return err
}

// call performs one serialized request-response cycle.
func (c *Client) call(ctx context.Context, op string, request any) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultCallTimeout)
	}
	c.conn.SetDeadline(deadline)

	if err := WriteMessage(c.conn, request); err != nil {
		return Response{}, fmt.Errorf("tagrpc: %s: %w", op, err)
	}

	var response Response
	if err := ReadMessage(c.conn, &response); err != nil {
		return Response{}, fmt.Errorf("tagrpc: %s: reading response: %w", op, err)
	}

	if response.Status != StatusOK {
		return Response{}, &ServiceError{
			Op:      op,
			Status:  response.Status,
			Message: response.Error,
		}
	}
	return response, nil
}

// validateTags re-validates tag names received from the service. The
// service is trusted more than an arbitrary peer, but a corrupted
// store or a version mismatch should surface here, not deeper in the
// caller.
func (c *Client) validateTags(op string, names []string) ([]tag.Tag, error) {
	tags, err := tag.ParseAll(names)
	if err != nil {
		return nil, fmt.Errorf("tagrpc: %s: service returned invalid tag: %w", op, err)
	}
	return tags, nil
}
