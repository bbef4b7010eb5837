// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package memstore provides a LinearStore that lives entirely on the heap.
// It grows as it is written to, and is mostly useful for tests and for
// staging changes that are later copied to a persistent store.
package memstore

import (
	"fmt"
	"sync"

	"github.com/bpowers/shale"
)

// Option configures a Store.
type Option func(*options)

type options struct {
	size     uint64
	maxSize  uint64
	readOnly bool
	id       shale.StoreID
}

// WithSize sets the initial (zero-filled) size of the store.
func WithSize(size uint64) Option {
	return func(opts *options) {
		opts.size = size
	}
}

// WithMaxSize bounds how far writes may grow the store.  0 means unbounded.
func WithMaxSize(size uint64) Option {
	return func(opts *options) {
		opts.maxSize = size
	}
}

// ReadOnly makes every Write fail with shale.ErrImmutableWrite.
func ReadOnly() Option {
	return func(opts *options) {
		opts.readOnly = true
	}
}

func WithStoreID(id shale.StoreID) Option {
	return func(opts *options) {
		opts.id = id
	}
}

type Store struct {
	mu        sync.RWMutex
	buf       []byte
	maxSize   uint64
	id        shale.StoreID
	writeable bool
}

// New returns an empty store.  Unless WithStoreID is given its id is
// shale.InvalidStoreID.
func New(opts ...Option) *Store {
	options := options{
		id: shale.InvalidStoreID,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Store{
		buf:       make([]byte, options.size),
		maxSize:   options.maxSize,
		id:        options.id,
		writeable: !options.readOnly,
	}
}

// FromBytes returns a store initialized with a copy of data.
func FromBytes(data []byte, opts ...Option) *Store {
	s := New(opts...)
	if uint64(len(data)) > uint64(len(s.buf)) {
		s.buf = make([]byte, len(data))
	}
	copy(s.buf, data)
	return s
}

func (s *Store) GetView(offset, length uint64) (shale.LinearStoreView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	end := offset + length
	if end < offset || end > uint64(len(s.buf)) {
		return nil, false
	}
	view := make([]byte, length)
	copy(view, s.buf[offset:end])
	return shale.ByteView(view), true
}

// GetShared returns s: a *Store is already safe to share between readers.
func (s *Store) GetShared() shale.LinearStore {
	return s
}

func (s *Store) Write(offset uint64, change []byte) error {
	if !s.writeable {
		return fmt.Errorf("memstore %d: %w", s.id, shale.ErrImmutableWrite)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	end := offset + uint64(len(change))
	if end < offset || (s.maxSize > 0 && end > s.maxSize) {
		return fmt.Errorf("%w: write [%d, %d) beyond max size %d", shale.ErrIO, offset, end, s.maxSize)
	}
	if end > uint64(len(s.buf)) {
		s.grow(end)
	}
	copy(s.buf[offset:end], change)
	return nil
}

// grow extends buf to n bytes; the new region reads as zeros.
func (s *Store) grow(n uint64) {
	if n <= uint64(cap(s.buf)) {
		old := len(s.buf)
		s.buf = s.buf[:n]
		clear(s.buf[old:])
		return
	}
	newCap := 2 * uint64(cap(s.buf))
	if newCap < n {
		newCap = n
	}
	if s.maxSize > 0 && newCap > s.maxSize {
		newCap = s.maxSize
	}
	buf := make([]byte, n, newCap)
	copy(buf, s.buf)
	s.buf = buf
}

func (s *Store) ID() shale.StoreID {
	return s.id
}

func (s *Store) IsWriteable() bool {
	return s.writeable
}

// Len returns the current size of the store in bytes.
func (s *Store) Len() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.buf))
}

var _ shale.LinearStore = &Store{}
