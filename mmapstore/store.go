// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mmapstore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/bpowers/shale"
)

const defaultSize = 64 * 1024 * 1024

var errClosed = errors.New("store closed")

// Option configures Open.
type Option func(*options)

type options struct {
	size     int64
	readOnly bool
	id       shale.StoreID
	logger   *slog.Logger
}

// WithSize sets the size of a newly created file (64 MB by default), or
// grows an existing one.  It includes the header.
func WithSize(size int64) Option {
	return func(opts *options) {
		opts.size = size
	}
}

// ReadOnly maps the file read-only; every Write fails with
// shale.ErrImmutableWrite.
func ReadOnly() Option {
	return func(opts *options) {
		opts.readOnly = true
	}
}

// WithStoreID sets the id recorded in a newly created file.  Existing files
// keep the id in their header.
func WithStoreID(id shale.StoreID) Option {
	return func(opts *options) {
		opts.id = id
	}
}

// WithLogger sets an optional logger.  If not provided, no logging output
// will be produced.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

type Store struct {
	mu        sync.RWMutex
	f         *os.File
	data      []byte
	id        shale.StoreID
	writeable bool
	closed    atomic.Bool
	logger    *slog.Logger
}

// Open maps the store file at path, creating it if it doesn't exist and the
// store isn't read-only.
func Open(path string, opts ...Option) (*Store, error) {
	options := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.size != 0 && options.size < HeaderSize {
		return nil, fmt.Errorf("store size %d smaller than header (%d)", options.size, HeaderSize)
	}

	flag, prot := os.O_RDWR|os.O_CREATE, unix.PROT_READ|unix.PROT_WRITE
	if options.readOnly {
		flag, prot = os.O_RDONLY, unix.PROT_READ
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("os.OpenFile(%s): %w", path, err)
	}

	s, err := open(f, prot, options)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	s.logger.Debug("opened store", "path", path, "size", len(s.data), "id", s.id, "writeable", s.writeable)
	return s, nil
}

func open(f *os.File, prot int, options options) (*Store, error) {
	stats, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("f.Stat: %w", err)
	}
	size := stats.Size()
	created := size == 0 && !options.readOnly

	want := options.size
	if created && want == 0 {
		want = defaultSize
	}
	if !options.readOnly && size < want {
		if size != 0 && size < HeaderSize {
			return nil, fmt.Errorf("store file too short: %d < %d", size, HeaderSize)
		}
		if err := f.Truncate(want); err != nil {
			return nil, fmt.Errorf("f.Truncate: %w", err)
		}
		size = want
	}
	if size < HeaderSize {
		return nil, fmt.Errorf("store file too short: %d < %d", size, HeaderSize)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("unix.Mmap: %w", err)
	}
	if err := unix.Madvise(data, unix.MADV_RANDOM); err != nil {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("madvise: %w", err)
	}

	var header fileHeader
	if created {
		header = *newFileHeader(options.id)
		err = header.MarshalTo(data)
	} else {
		err = header.UnmarshalBytes(data)
	}
	if err != nil {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("fileHeader: %w", err)
	}

	return &Store{
		f:         f,
		data:      data,
		id:        header.storeID,
		writeable: !options.readOnly,
		logger:    options.logger,
	}, nil
}

func (s *Store) inBounds(offset, length uint64) bool {
	end := offset + length
	return offset >= HeaderSize && end >= offset && end <= uint64(len(s.data))
}

func (s *Store) GetView(offset, length uint64) (shale.LinearStoreView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed.Load() || !s.inBounds(offset, length) {
		return nil, false
	}
	view := make([]byte, length)
	copy(view, s.data[offset:offset+length])
	return shale.ByteView(view), true
}

// GetShared returns s: the mapping is shared by every reader.
func (s *Store) GetShared() shale.LinearStore {
	return s
}

func (s *Store) Write(offset uint64, change []byte) error {
	if !s.writeable {
		return fmt.Errorf("mmapstore %d: %w", s.id, shale.ErrImmutableWrite)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return fmt.Errorf("%w: %w", shale.ErrIO, errClosed)
	}
	length := uint64(len(change))
	if !s.inBounds(offset, length) {
		return fmt.Errorf("%w: write [%d, %d) outside [%d, %d)", shale.ErrIO, offset, offset+length, HeaderSize, len(s.data))
	}
	copy(s.data[offset:], change)
	return nil
}

func (s *Store) ID() shale.StoreID {
	return s.id
}

func (s *Store) IsWriteable() bool {
	return s.writeable
}

// Len returns the mapped size, including the header.
func (s *Store) Len() uint64 {
	return uint64(len(s.data))
}

// Sync flushes written pages to the file.
func (s *Store) Sync() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed.Load() {
		return fmt.Errorf("%w: %w", shale.ErrIO, errClosed)
	}
	if !s.writeable {
		return nil
	}
	if err := unix.Msync(s.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("%w: msync: %w", shale.ErrIO, err)
	}
	return nil
}

// Close unmaps and closes the file.  It does not Sync.  Closing more than
// once is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Swap(true) {
		return nil
	}
	var firstErr error
	if err := unix.Munmap(s.data); err != nil {
		firstErr = fmt.Errorf("munmap: %w", err)
	}
	s.data = nil
	if err := s.f.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("f.Close: %w", err)
	}
	s.logger.Debug("closed store", "id", s.id)
	return firstErr
}

var _ shale.LinearStore = &Store{}
