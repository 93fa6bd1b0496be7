//
// Copyright (C) 2025 The agentflow authors. All rights reserved.
//
// agentflow is licensed under the Apache License Version 2.0.
//

package tool

import (
	"io"
	"time"
)

// NewStream creates a new bidirectional stream with the specified buffer size.
// The buffer size determines how many StreamChunk items can be queued before
// the sender blocks.
func NewStream(bufferSize int) *Stream {
	s := newStream[StreamChunk](bufferSize)
	return &Stream{
		Reader: &StreamReader{s: s},
		Writer: &StreamWriter{s: s},
	}
}

// Stream represents a streaming connection with separate Reader and Writer
// sides for consuming and producing streaming data.
type Stream struct {
	Reader *StreamReader // Reader for consuming StreamChunk items.
	Writer *StreamWriter // Writer for producing StreamChunk items.
}

// StreamReader provides the reading interface for consuming streaming data.
type StreamReader struct {
	s *stream[StreamChunk]
}

// Recv receives the next StreamChunk from the stream.
// This method blocks until a chunk is available or an error occurs.
// Returns io.EOF when the stream has been closed by the sender.
func (r *StreamReader) Recv() (StreamChunk, error) {
	return r.s.recv()
}

// Close closes the receiving side of the stream, signaling to the sender
// that the reader is no longer interested in receiving data.
func (r *StreamReader) Close() {
	r.s.closeRecv()
}

// StreamWriter provides the writing interface for producing streaming data.
type StreamWriter struct {
	s *stream[StreamChunk]
}

// Send sends a StreamChunk with optional error to the stream.
// Returns true if the stream has been closed by the reader and the data
// could not be sent, false if the send was successful.
func (w *StreamWriter) Send(chunk StreamChunk, err error) (closed bool) {
	return w.s.send(chunk, err)
}

// Close closes the sending side of the stream; receivers observe io.EOF
// once buffered chunks are drained.
func (w *StreamWriter) Close() {
	w.s.closeSend()
}

// StreamChunk represents a single unit of data in a streaming operation.
type StreamChunk struct {
	// Content holds the actual data being streamed.
	Content  any      `json:"content"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Metadata contains additional information about a StreamChunk.
type Metadata struct {
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type stream[T any] struct {
	items  chan streamItem[T]
	closed chan struct{}
}

type streamItem[T any] struct {
	chunk T
	err   error
}

func newStream[T any](cap int) *stream[T] {
	return &stream[T]{
		items:  make(chan streamItem[T], cap),
		closed: make(chan struct{}),
	}
}

func (s *stream[T]) recv() (chunk T, err error) {
	item, ok := <-s.items
	if !ok {
		item.err = io.EOF
	}
	return item.chunk, item.err
}

func (s *stream[T]) send(chunk T, err error) (closed bool) {
	select {
	case <-s.closed:
		return true
	default:
	}

	item := streamItem[T]{chunk, err}

	select {
	case <-s.closed:
		return true
	case s.items <- item:
		return false
	}
}

func (s *stream[T]) closeSend() {
	close(s.items)
}

func (s *stream[T]) closeRecv() {
	close(s.closed)
}
