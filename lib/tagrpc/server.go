// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

package tagrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"sync"
	"time"

	"github.com/contenttag/tagd/lib/codec"
	"github.com/contenttag/tagd/lib/digest"
	"github.com/contenttag/tagd/lib/tag"
	"github.com/contenttag/tagd/lib/tagstore"
)

// writeTimeout is how long the server waits for a response write to
// complete before giving up on the connection.
const writeTimeout = 10 * time.Second

// Server serves the tag protocol on a listener. Connections are
// persistent: a client sends any number of framed requests and
// receives one framed response per request, in order. The connection
// stays open until the client closes it or the server shuts down.
type Server struct {
	store  *tagstore.Store
	logger *slog.Logger

	// activeConnections tracks in-flight connection handlers for
	// graceful shutdown. Serve waits for all of them after the
	// listener closes.
	activeConnections sync.WaitGroup

	// connMu guards conns. Because connections are persistent, an
	// idle client would block shutdown forever; Serve closes every
	// tracked connection once the context is cancelled.
	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// NewServer creates a server backed by the given store. If logger is
// nil, logging is discarded.
func NewServer(store *tagstore.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	return &Server{
		store:  store,
		logger: logger,
		conns:  make(map[net.Conn]struct{}),
	}
}

// Serve accepts connections on listener and dispatches requests until
// ctx is cancelled. On cancellation it stops accepting, closes every
// open connection, and waits for in-flight handlers to finish. The
// listener is closed on return.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	defer listener.Close()

	// Unblock Accept and idle connection reads when the context is
	// cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
		s.connMu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.connMu.Unlock()
	}()

	s.logger.Info("tag service listening", "address", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.trackConn(conn)
		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			defer s.untrackConn(conn)
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

func (s *Server) trackConn(conn net.Conn) {
	s.connMu.Lock()
	s.conns[conn] = struct{}{}
	s.connMu.Unlock()
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connMu.Lock()
	delete(s.conns, conn)
	s.connMu.Unlock()
}

// handleConnection runs the request loop for one connection. The loop
// ends when the client closes the connection, a read fails, or a
// frame is too malformed to answer.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	for {
		payload, err := readFrame(conn)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			// Framing errors leave the stream position unknown, so
			// no response can be delivered reliably. Drop the
			// connection.
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("dropping connection", "error", err)
			}
			return
		}

		response := s.dispatch(ctx, payload)

		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := WriteMessage(conn, response); err != nil {
			s.logger.Debug("failed to write response", "error", err)
			return
		}
	}
}

// dispatch routes one decoded frame to its operation handler and
// wraps the result in a response envelope.
func (s *Server) dispatch(ctx context.Context, payload []byte) Response {
	var header struct {
		Op string `cbor:"op"`
	}
	if err := codec.Unmarshal(payload, &header); err != nil {
		return s.failure(badRequest("invalid request: %v", err))
	}

	var result any
	var err error
	switch header.Op {
	case OpGetTags:
		result, err = s.handleGetTags(ctx, payload)
	case OpAddTags:
		result, err = s.handleAddTags(ctx, payload)
	case OpGetMultipleTags:
		result, err = s.handleGetMultipleTags(ctx, payload)
	case OpCopyTags:
		result, err = s.handleCopyTags(ctx, payload)
	case "":
		err = badRequest("missing required field: op")
	default:
		err = badRequest("unknown operation %q", header.Op)
	}
	if err != nil {
		s.logger.Debug("operation failed", "op", header.Op, "error", err)
		return s.failure(err)
	}

	response := Response{Status: StatusOK}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			return s.failure(fmt.Errorf("marshaling response: %w", err))
		}
		response.Data = data
	}
	return response
}

func (s *Server) failure(err error) Response {
	return Response{
		Status: statusFor(err),
		Error:  err.Error(),
	}
}

func (s *Server) handleGetTags(ctx context.Context, payload []byte) (any, error) {
	var request GetTagsRequest
	if err := codec.Unmarshal(payload, &request); err != nil {
		return nil, badRequest("invalid get-tags request: %v", err)
	}

	d, err := digest.Parse(request.Hash)
	if err != nil {
		return nil, err
	}

	tags, err := s.store.GetTags(ctx, d)
	if err != nil {
		return nil, err
	}
	return TagList{Tags: tag.Strings(tags)}, nil
}

func (s *Server) handleAddTags(ctx context.Context, payload []byte) (any, error) {
	var request AddTagsRequest
	if err := codec.Unmarshal(payload, &request); err != nil {
		return nil, badRequest("invalid add-tags request: %v", err)
	}

	d, err := digest.Parse(request.Hash)
	if err != nil {
		return nil, err
	}
	// Wire input is untrusted: re-validate every tag even though
	// well-behaved clients validate before sending.
	tags, err := tag.ParseAll(request.Tags)
	if err != nil {
		return nil, err
	}

	if err := s.store.AddTags(ctx, d, tags); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleGetMultipleTags(ctx context.Context, payload []byte) (any, error) {
	var request GetMultipleTagsRequest
	if err := codec.Unmarshal(payload, &request); err != nil {
		return nil, badRequest("invalid get-multiple-tags request: %v", err)
	}

	digests := make([]digest.Digest, len(request.Hashes))
	for i, raw := range request.Hashes {
		d, err := digest.Parse(raw)
		if err != nil {
			return nil, err
		}
		digests[i] = d
	}

	results, err := s.store.GetMultipleTags(ctx, digests)
	if err != nil {
		return nil, err
	}

	tagLists := make([][]string, len(results))
	for i, tags := range results {
		tagLists[i] = tag.Strings(tags)
		if tagLists[i] == nil {
			tagLists[i] = []string{}
		}
	}
	return TagLists{TagLists: tagLists}, nil
}

func (s *Server) handleCopyTags(ctx context.Context, payload []byte) (any, error) {
	var request CopyTagsRequest
	if err := codec.Unmarshal(payload, &request); err != nil {
		return nil, badRequest("invalid copy-tags request: %v", err)
	}

	source, err := digest.Parse(request.SourceHash)
	if err != nil {
		return nil, err
	}
	destination, err := digest.Parse(request.DestinationHash)
	if err != nil {
		return nil, err
	}

	if err := s.store.CopyTags(ctx, source, destination); err != nil {
		return nil, err
	}
	return nil, nil
}
